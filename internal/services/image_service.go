package services

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Avdh512/DrawingPika/internal/models"
	"github.com/disintegration/imaging"

	// Регистрация WEBP-декодера: формат входит в список разрешенных,
	// но кодировать его обратно Go не умеет (см. formatForExtension).
	_ "golang.org/x/image/webp"
)

// ImageStore хранит файлы фотографий в одном каталоге на локальном диске
// и выполняет над ними физический поворот.
type ImageStore struct {
	dir string
}

// NewImageStore создает хранилище поверх существующего каталога.
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{dir: dir}
}

// Save записывает байты изображения под свежесгенерированным уникальным именем,
// сохраняющим расширение оригинала. Возвращает имя файла и записанный размер.
// При ошибке ввода-вывода файл не остается на диске, и вызывающий код
// не должен создавать запись метаданных.
func (s *ImageStore) Save(data []byte, originalName string) (string, int64, error) {
	storedName := GenerateUniqueFilename(originalName)
	fullPath := filepath.Join(s.dir, storedName)

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		// Недописанный файл подчищаем: частично записанные байты бесполезны.
		os.Remove(fullPath)
		return "", 0, fmt.Errorf("не удалось сохранить файл %s: %w", fullPath, err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("не удалось получить размер файла %s: %w", fullPath, err)
	}

	log.Printf("Файл изображения сохранен: %s (%d байт)", fullPath, info.Size())
	return storedName, info.Size(), nil
}

// Path возвращает абсолютный путь к файлу после санитизации имени.
// Возвращает models.ErrNotFound, если файла на диске нет.
func (s *ImageStore) Path(fileName string) (string, error) {
	safeName := SanitizeFilename(fileName)
	fullPath := filepath.Join(s.dir, safeName)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("файл %s: %w", safeName, models.ErrNotFound)
		}
		return "", fmt.Errorf("ошибка доступа к файлу %s: %w", fullPath, err)
	}
	return fullPath, nil
}

// Exists сообщает, есть ли файл на диске.
func (s *ImageStore) Exists(fileName string) bool {
	_, err := os.Stat(filepath.Join(s.dir, SanitizeFilename(fileName)))
	return err == nil
}

// Delete удаляет файл. Уже отсутствующий файл - не ошибка: метаданные все
// равно должны быть подчищены, поэтому логируем предупреждение и выходим.
// Настоящие ошибки ввода-вывода возвращаются вызывающему коду.
func (s *ImageStore) Delete(fileName string) error {
	fullPath := filepath.Join(s.dir, SanitizeFilename(fileName))
	err := os.Remove(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("ПРЕДУПРЕЖДЕНИЕ: попытка удалить несуществующий файл: %s", fullPath)
			return nil
		}
		return fmt.Errorf("не удалось удалить файл %s: %w", fullPath, err)
	}
	log.Printf("Файл изображения удален: %s", fullPath)
	return nil
}

// Rotate физически поворачивает изображение на заданный угол.
// Положительный угол - поворот ПО часовой стрелке с точки зрения пользователя.
// Перед поворотом применяется EXIF-ориентация, альфа-канал сводится на белый
// фон (безопасно для последующего lossy-кодирования). Файл перезаписывается
// атомарно: кодирование во временный файл, затем rename, поэтому читатель
// не увидит наполовину записанный файл. Любая ошибка оставляет оригинал
// нетронутым и возвращается вызывающему коду - хранимый угол в метаданных
// в этом случае сбрасывать нельзя.
func (s *ImageStore) Rotate(fileName string, degrees int) error {
	// Полный оборот (включая 0) не меняет пикселей - файл не трогаем.
	if degrees%360 == 0 {
		log.Printf("Поворот %d° для %s не требует изменений файла.", degrees, fileName)
		return nil
	}

	fullPath, err := s.Path(fileName)
	if err != nil {
		return err
	}

	// Формат перекодирования определяется расширением оригинала и проверяется
	// до каких-либо изменений файла.
	format, err := formatForExtension(filepath.Ext(fileName))
	if err != nil {
		return err
	}

	// AutoOrientation применяет встроенный EXIF-тег ориентации, так что
	// пиксельный буфер совпадает с видимой ориентацией еще до поворота.
	src, err := imaging.Open(fullPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("не удалось декодировать изображение %s: %w", fullPath, err)
	}

	// Сведение на непрозрачный белый фон: убирает альфа-канал, который
	// JPEG-кодировщик не переживет.
	bounds := src.Bounds()
	flattened := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flattened = imaging.Overlay(flattened, src, image.Pt(0, 0), 1.0)

	// imaging.Rotate считает положительный угол поворотом ПРОТИВ часовой
	// стрелки, а контракт метода - ПО часовой. Знак обязан быть
	// инвертирован, иначе все повороты пойдут в обратную сторону.
	rotated := imaging.Rotate(flattened, float64(-degrees), color.White)

	// Пишем результат во временный файл в том же каталоге и подменяем
	// оригинал через rename.
	tmp, err := os.CreateTemp(s.dir, SanitizeFilename(fileName)+".tmp-*")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл для %s: %w", fileName, err)
	}
	tmpName := tmp.Name()

	if err = imaging.Encode(tmp, rotated, format, imaging.JPEGQuality(95)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("не удалось закодировать повернутое изображение %s: %w", fileName, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("не удалось закрыть временный файл для %s: %w", fileName, err)
	}
	if err = os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("не удалось заменить файл %s повернутой версией: %w", fullPath, err)
	}

	log.Printf("Изображение %s повернуто на %d° и сохранено.", fileName, degrees)
	return nil
}

// formatForExtension сопоставляет расширению файла формат перекодирования.
// jfif кодируется как JPEG. Для webp и heic кодировщиков в Go нет, поэтому
// поворот таких файлов завершается ошибкой без изменения оригинала.
func formatForExtension(ext string) (imaging.Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "jfif":
		return imaging.JPEG, nil
	case "png":
		return imaging.PNG, nil
	case "gif":
		return imaging.GIF, nil
	case "bmp":
		return imaging.BMP, nil
	case "tif", "tiff":
		return imaging.TIFF, nil
	default:
		return imaging.JPEG, fmt.Errorf("перекодирование формата '%s' не поддерживается", ext)
	}
}
