package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Avdh512/DrawingPika/internal/models"
)

// MetadataStore - контракт хранилища метаданных. Реализуется и SQLite-,
// и JSON-вариантом; сервису безразлично, какой из них подключен.
type MetadataStore interface {
	// Insert сохраняет новую запись; models.ErrDuplicate при занятом id или fileName.
	Insert(rec *models.PhotoRecord) error
	// Update частично сливает поля и всегда обновляет lastModified;
	// models.ErrNotFound для неизвестного id. Возвращает запись целиком.
	Update(id string, upd models.PhotoUpdate) (*models.PhotoRecord, error)
	GetByID(id string) (*models.PhotoRecord, error)
	GetByFileName(fileName string) (*models.PhotoRecord, error)
	DeleteByID(id string) error
	// All возвращает записи по убыванию photoDateTime.
	All() ([]models.PhotoRecord, error)
	// ByDatePrefix возвращает записи с датой 'YYYY-MM-DD' по убыванию photoDateTime.
	ByDatePrefix(date string) ([]models.PhotoRecord, error)
	Close() error
}

// allowedExtensions - разрешенные расширения загружаемых файлов (без точки,
// в нижнем регистре).
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"jfif": true,
	"webp": true,
	"tiff": true,
	"bmp":  true,
	"heic": true,
}

// isoTimeLayout - ISO-8601 с микросекундами; строки в этом формате
// сортируются лексикографически в хронологическом порядке.
const isoTimeLayout = "2006-01-02T15:04:05.000000"

// nowISO возвращает текущее время в формате uploadTime/lastModified.
func nowISO() string {
	return time.Now().Format(isoTimeLayout)
}

// extensionAllowed проверяет расширение имени файла по списку разрешенных
// без учета регистра.
func extensionAllowed(fileName string) bool {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 || idx == len(fileName)-1 {
		return false
	}
	return allowedExtensions[strings.ToLower(fileName[idx+1:])]
}

// SingleUpload - входные данные одиночной загрузки.
type SingleUpload struct {
	Data         []byte // байты изображения
	OriginalName string // имя файла, как его прислал пользователь
	Title        string // название; пустое заменяется на "Untitled Photo"
	Date         string // дата снимка 'YYYY-MM-DD' (обязательно)
	Time         string // время снимка 'HH:MM' (обязательно)
	Location     string
	Description  string
}

// BulkFile - один файл массовой загрузки.
type BulkFile struct {
	Data         []byte
	OriginalName string
}

// UpdateRequest - частичное обновление метаданных; nil-поля не затрагиваются.
// Теги json соответствуют телу POST /api/update_metadata.
type UpdateRequest struct {
	ID            string  `json:"id"`
	Title         *string `json:"title"`
	PhotoDateTime *string `json:"photoDateTime"`
	Location      *string `json:"location"`
	Description   *string `json:"description"`
	Rotation      *int    `json:"rotation"`
}

// PhotoService оркестрирует хранилище метаданных, файловое хранилище
// и AI-помощника. Все инварианты согласованности "файл <-> запись"
// реализованы здесь.
type PhotoService struct {
	store     MetadataStore
	images    *ImageStore
	captioner Captioner
}

// NewPhotoService собирает сервис из явных зависимостей.
func NewPhotoService(store MetadataStore, images *ImageStore, captioner Captioner) *PhotoService {
	return &PhotoService{store: store, images: images, captioner: captioner}
}

// UploadSingle обрабатывает одиночную загрузку с пользовательскими метаданными.
// Вся валидация выполняется ДО каких-либо побочных эффектов.
// Если вставка метаданных не удалась после успешной записи файла, файл
// сознательно НЕ удаляется: лучше осиротевший файл, чем потерянная
// пользовательская фотография. Ошибка при этом отдается вызывающему коду.
func (s *PhotoService) UploadSingle(req SingleUpload) (*models.PhotoRecord, error) {
	if len(req.Data) == 0 {
		return nil, models.NewValidationError("No file selected")
	}
	if !extensionAllowed(req.OriginalName) {
		return nil, models.NewValidationError("Invalid file type")
	}
	if req.Date == "" || req.Time == "" {
		return nil, models.NewValidationError("Date and time are required")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, models.NewValidationError("Date and time are required")
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return nil, models.NewValidationError("Date and time are required")
	}

	title := req.Title
	if title == "" {
		title = "Untitled Photo"
	}
	originalName := SanitizeFilename(req.OriginalName)

	storedName, size, err := s.images.Save(req.Data, req.OriginalName)
	if err != nil {
		log.Printf("ОШИБКА: не удалось сохранить файл '%s': %v", originalName, err)
		return nil, models.NewStorageError(fmt.Sprintf("Failed to save file: %s", originalName))
	}

	now := nowISO()
	rec := &models.PhotoRecord{
		ID:            GenerateID(),
		Title:         title,
		FileName:      storedName,
		OriginalName:  originalName,
		PhotoDateTime: req.Date + "T" + req.Time + ":00",
		Location:      req.Location,
		Description:   req.Description,
		FileSize:      size,
		UploadTime:    now,
		LastModified:  now,
	}

	if err := s.store.Insert(rec); err != nil {
		// Файл уже на диске и остается там: записанные пользователем данные
		// дороже строгой согласованности. Известное состояние частичного
		// сбоя, отдается клиенту как ошибка сервера.
		log.Printf("КРИТИЧЕСКАЯ ОШИБКА: запись метаданных для файла %s не удалась, файл оставлен на диске: %v", storedName, err)
		return nil, models.NewStorageError("Failed to save photo metadata for single upload.")
	}

	log.Printf("Фотография '%s' загружена: id=%s, файл=%s", title, rec.ID, storedName)
	return rec, nil
}

// UploadBulk обрабатывает массовую загрузку с AI-подписями.
// Каждый файл независим: сбой одного (сохранение, AI, вставка) не срывает
// остальные. Сбой AI-помощника подменяется заглушкой внутри Captioner.
// Ошибка возвращается только если не обработан ни один файл.
func (s *PhotoService) UploadBulk(ctx context.Context, files []BulkFile) ([]models.PhotoRecord, error) {
	uploaded := []models.PhotoRecord{}

	for _, f := range files {
		if len(f.Data) == 0 || !extensionAllowed(f.OriginalName) {
			log.Printf("ПРЕДУПРЕЖДЕНИЕ: массовая загрузка отклонила файл '%s' (пустой или недопустимый тип).", f.OriginalName)
			continue
		}

		storedName, size, err := s.images.Save(f.Data, f.OriginalName)
		if err != nil {
			log.Printf("ОШИБКА: не удалось сохранить файл '%s' при массовой загрузке: %v", f.OriginalName, err)
			continue
		}

		caption := s.captioner.Describe(ctx, f.Data)

		now := nowISO()
		rec := models.PhotoRecord{
			ID:            GenerateID(),
			Title:         caption.Title,
			FileName:      storedName,
			OriginalName:  SanitizeFilename(f.OriginalName),
			PhotoDateTime: now,
			Location:      "",
			Description:   caption.Description,
			FileSize:      size,
			UploadTime:    now,
			LastModified:  now,
		}

		if err := s.store.Insert(&rec); err != nil {
			// Файл остается на диске и здесь - та же политика, что в UploadSingle.
			log.Printf("ОШИБКА: запись метаданных для '%s' не удалась при массовой загрузке: %v", f.OriginalName, err)
			continue
		}

		uploaded = append(uploaded, rec)
	}

	if len(uploaded) == 0 {
		return nil, models.NewValidationError("No valid files were uploaded or processed successfully")
	}

	log.Printf("Массовая загрузка: обработано %d из %d файлов.", len(uploaded), len(files))
	return uploaded, nil
}

// Update применяет частичное обновление метаданных, включая физический поворот.
// Порядок жесткий: сначала поворот файла, и только при его успехе - изменение
// метаданных. Неудачный поворот прерывает операцию целиком, ни одно поле
// не меняется. lastModified обновляется всегда, даже если содержательных
// изменений не было.
func (s *PhotoService) Update(req UpdateRequest) (*models.PhotoRecord, error) {
	if req.ID == "" {
		return nil, models.NewValidationError("Photo ID is required")
	}

	rec, err := s.store.GetByID(req.ID)
	if err != nil {
		return nil, models.NewNotFoundError("Photo not found")
	}

	if req.Rotation != nil && *req.Rotation != 0 {
		if !s.images.Exists(rec.FileName) {
			log.Printf("ОШИБКА: файл %s для записи %s отсутствует на диске.", rec.FileName, rec.ID)
			return nil, models.NewNotFoundError("Image file not found")
		}
		if err := s.images.Rotate(rec.FileName, *req.Rotation); err != nil {
			log.Printf("ОШИБКА: поворот файла %s на %d° не удался: %v", rec.FileName, *req.Rotation, err)
			return nil, models.NewStorageError("Failed to rotate image file")
		}
		// Файл повернут физически - хранимый угол после этого всегда 0,
		// отдельного сохранения угла не существует.
	}

	upd := models.PhotoUpdate{
		Title:         req.Title,
		PhotoDateTime: req.PhotoDateTime,
		Location:      req.Location,
		Description:   req.Description,
		LastModified:  nowISO(),
	}

	updated, err := s.store.Update(req.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("обновление метаданных %s: %w", req.ID, err)
	}
	log.Printf("Метаданные фотографии %s обновлены (lastModified=%s).", req.ID, updated.LastModified)
	return updated, nil
}

// Delete удаляет фотографию: сначала файл, затем запись метаданных.
// Уже отсутствующий файл допустим (метаданные все равно чистятся), но
// настоящая ошибка ввода-вывода прерывает операцию с сохранением записи:
// запись, указывающая в пустоту из-за временного сбоя диска, недопустима.
func (s *PhotoService) Delete(id string) error {
	rec, err := s.store.GetByID(id)
	if err != nil {
		return models.NewNotFoundError("Photo not found in database")
	}

	if err := s.images.Delete(rec.FileName); err != nil {
		log.Printf("ОШИБКА: не удалось удалить файл %s, запись %s сохранена: %v", rec.FileName, id, err)
		return models.NewStorageError(fmt.Sprintf("Failed to delete file: %s", rec.FileName))
	}

	if err := s.store.DeleteByID(id); err != nil {
		return fmt.Errorf("удаление метаданных %s: %w", id, err)
	}
	log.Printf("Фотография %s удалена (файл и метаданные).", id)
	return nil
}

// dateKey возвращает ключ группировки - первые 10 символов photoDateTime
// ('YYYY-MM-DD').
func dateKey(photoDateTime string) string {
	if len(photoDateTime) < 10 {
		return photoDateTime
	}
	return photoDateTime[:10]
}

// ListAll возвращает все записи, сгруппированные по дате; внутри группы
// порядок по убыванию photoDateTime (его задает хранилище). Второе значение -
// общее количество фотографий.
func (s *PhotoService) ListAll() (map[string][]models.PhotoRecord, int, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, 0, err
	}
	organized := map[string][]models.PhotoRecord{}
	for _, rec := range all {
		key := dateKey(rec.PhotoDateTime)
		organized[key] = append(organized[key], rec)
	}
	return organized, len(all), nil
}

// ListByDate возвращает записи, чья дата точно совпадает с date.
func (s *PhotoService) ListByDate(date string) ([]models.PhotoRecord, error) {
	return s.store.ByDatePrefix(date)
}

// Metadata возвращает плоское отображение id -> запись
// (вид для совместимости со старой структурой JSON-документа).
func (s *PhotoService) Metadata() (map[string]models.PhotoRecord, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}
	metadata := map[string]models.PhotoRecord{}
	for _, rec := range all {
		metadata[rec.ID] = rec
	}
	return metadata, nil
}

// Stats считает агрегаты дневника. Старейшая/новейшая фотографии -
// лексикографические min/max по photoDateTime: ISO-8601 сортируется
// хронологически как текст.
func (s *PhotoService) Stats() (*models.Stats, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{
		TotalPhotos:   len(all),
		PhotosPerDate: map[string]int{},
	}

	for _, rec := range all {
		stats.PhotosPerDate[dateKey(rec.PhotoDateTime)]++
		dt := rec.PhotoDateTime
		if stats.OldestPhoto == nil || dt < *stats.OldestPhoto {
			v := dt
			stats.OldestPhoto = &v
		}
		if stats.NewestPhoto == nil || dt > *stats.NewestPhoto {
			v := dt
			stats.NewestPhoto = &v
		}
	}
	stats.TotalDates = len(stats.PhotosPerDate)

	return stats, nil
}

// Images дает обработчикам доступ к файловому хранилищу (отдача файлов).
func (s *PhotoService) Images() *ImageStore {
	return s.images
}
