package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/Avdh512/DrawingPika/internal/models"
)

// JSONStore - файловый вариант хранилища метаданных: плоский JSON-документ
// id -> запись, как в первом прототипе. Документ перечитывается на каждую
// операцию; предполагается один пишущий процесс.
type JSONStore struct {
	path string
}

// NewJSONStore создает хранилище поверх указанного файла.
// Отсутствующий файл трактуется как пустой дневник.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Close ничего не освобождает: файл не держится открытым между операциями.
func (s *JSONStore) Close() error {
	return nil
}

// load читает весь документ с диска.
func (s *JSONStore) load() (map[string]models.PhotoRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]models.PhotoRecord{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения файла метаданных %s: %w", s.path, err)
	}
	metadata := map[string]models.PhotoRecord{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла метаданных %s: %w", s.path, err)
	}
	return metadata, nil
}

// save записывает документ атомарно: во временный файл рядом, затем rename.
// Читатель никогда не увидит наполовину записанный документ.
func (s *JSONStore) save(metadata map[string]models.PhotoRecord) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла метаданных: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи временного файла метаданных: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка закрытия временного файла метаданных: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка замены файла метаданных %s: %w", s.path, err)
	}
	return nil
}

// Insert добавляет новую запись. Возвращает models.ErrDuplicate при
// конфликте id или fileName.
func (s *JSONStore) Insert(rec *models.PhotoRecord) error {
	metadata, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := metadata[rec.ID]; exists {
		log.Printf("КРИТИЧЕСКАЯ ОШИБКА: конфликт уникальности id=%s в JSON-хранилище", rec.ID)
		return fmt.Errorf("вставка записи %s: %w", rec.ID, models.ErrDuplicate)
	}
	for _, other := range metadata {
		if other.FileName == rec.FileName {
			log.Printf("КРИТИЧЕСКАЯ ОШИБКА: конфликт уникальности fileName=%s в JSON-хранилище", rec.FileName)
			return fmt.Errorf("вставка записи %s: %w", rec.ID, models.ErrDuplicate)
		}
	}

	stored := *rec
	stored.Rotation = 0 // физический поворот применяется сразу, хранимый угол всегда 0
	metadata[rec.ID] = stored
	return s.save(metadata)
}

// Update выполняет частичное слияние полей и безусловно обновляет lastModified.
func (s *JSONStore) Update(id string, upd models.PhotoUpdate) (*models.PhotoRecord, error) {
	metadata, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, exists := metadata[id]
	if !exists {
		return nil, fmt.Errorf("обновление записи %s: %w", id, models.ErrNotFound)
	}

	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.PhotoDateTime != nil {
		rec.PhotoDateTime = *upd.PhotoDateTime
	}
	if upd.Location != nil {
		rec.Location = *upd.Location
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	rec.LastModified = upd.LastModified
	rec.Rotation = 0

	metadata[id] = rec
	if err := s.save(metadata); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByID ищет запись по идентификатору.
func (s *JSONStore) GetByID(id string) (*models.PhotoRecord, error) {
	metadata, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, exists := metadata[id]
	if !exists {
		return nil, fmt.Errorf("поиск записи %s: %w", id, models.ErrNotFound)
	}
	return &rec, nil
}

// GetByFileName ищет запись по имени файла.
func (s *JSONStore) GetByFileName(fileName string) (*models.PhotoRecord, error) {
	metadata, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range metadata {
		if rec.FileName == fileName {
			r := rec
			return &r, nil
		}
	}
	return nil, fmt.Errorf("поиск записи по файлу %s: %w", fileName, models.ErrNotFound)
}

// DeleteByID удаляет запись из документа.
func (s *JSONStore) DeleteByID(id string) error {
	metadata, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := metadata[id]; !exists {
		return fmt.Errorf("удаление записи %s: %w", id, models.ErrNotFound)
	}
	delete(metadata, id)
	if err := s.save(metadata); err != nil {
		return err
	}
	log.Printf("Запись о фотографии %s удалена из JSON-хранилища.", id)
	return nil
}

// All возвращает все записи по убыванию photoDateTime.
func (s *JSONStore) All() ([]models.PhotoRecord, error) {
	metadata, err := s.load()
	if err != nil {
		return nil, err
	}
	photos := make([]models.PhotoRecord, 0, len(metadata))
	for _, rec := range metadata {
		photos = append(photos, rec)
	}
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].PhotoDateTime > photos[j].PhotoDateTime
	})
	return photos, nil
}

// ByDatePrefix возвращает записи с датой date ('YYYY-MM-DD')
// по убыванию photoDateTime.
func (s *JSONStore) ByDatePrefix(date string) ([]models.PhotoRecord, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	photos := []models.PhotoRecord{}
	for _, rec := range all {
		if len(rec.PhotoDateTime) >= 10 && rec.PhotoDateTime[:10] == date {
			photos = append(photos, rec)
		}
	}
	return photos, nil
}
