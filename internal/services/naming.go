package services

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// unsafeFilenameChars - все, что не входит в безопасный набор символов имени файла.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename приводит пользовательское имя файла к безопасному виду:
// отбрасывает каталоги и попытки обхода пути, пробелы заменяет на '_',
// остальные небезопасные символы удаляет. Пустой результат заменяется
// на "file", чтобы имя всегда оставалось валидным.
func SanitizeFilename(name string) string {
	// Windows-разделители тоже считаем разделителями пути.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	// Ведущие точки убираем: скрытые файлы и остатки ".." здесь не нужны.
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// GenerateID возвращает новый глобально уникальный идентификатор записи.
// Явная генерация UUID вместо схем на основе времени исключает коллизии
// при загрузках в одну и ту же миллисекунду.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateUniqueFilename строит уникальное имя хранимого файла:
// '<uuid>_<безопасное оригинальное имя>'. Расширение оригинала сохраняется,
// коллизии исключены самим UUID.
func GenerateUniqueFilename(originalName string) string {
	return uuid.NewString() + "_" + SanitizeFilename(originalName)
}
