package handlers

import (
	// Стандартные библиотеки
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	// Внутренние пакеты
	"github.com/Avdh512/DrawingPika/internal/models"
	"github.com/Avdh512/DrawingPika/internal/services"

	// Сторонние библиотеки
	"github.com/gin-gonic/gin"
)

// Константы для ограничений загрузки
const MaxUploadSize = 25 << 20 // 25 МБ на файл
const MaxBulkFiles = 50        // Максимальное количество файлов в массовой загрузке

// Handler связывает HTTP-маршруты с Photo Service. Зависимости передаются
// явно при создании - глобальных переменных здесь нет.
type Handler struct {
	photos *services.PhotoService
}

// New создает обработчик поверх готового сервиса.
func New(photos *services.PhotoService) *Handler {
	return &Handler{photos: photos}
}

// respondError отдает клиенту структурированную ошибку {"error": msg}.
// Сообщение берется только из RequestError; внутренние ошибки (и тем более
// стек-трейсы) клиенту не показываются.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	}

	message := "Internal server error"
	var reqErr *models.RequestError
	if errors.As(err, &reqErr) {
		message = reqErr.Message
	} else {
		log.Printf("ОШИБКА: внутренняя ошибка при обработке %s: %v", c.Request.URL.Path, err)
	}

	c.JSON(status, gin.H{"error": message})
}

// readFormFile вычитывает multipart-файл в память с ограничением размера.
func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > MaxUploadSize {
		return nil, fmt.Errorf("файл '%s' слишком большой (%d байт)", fh.Filename, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть загруженный файл '%s': %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать загруженный файл '%s': %w", fh.Filename, err)
	}
	return data, nil
}

// UploadSingle обрабатывает POST /api/upload_single:
// multipart-форма с файлом 'image' и полями name/date/time/location/description.
func (h *Handler) UploadSingle(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}

	data, err := readFormFile(fh)
	if err != nil {
		log.Printf("ОШИБКА: чтение файла одиночной загрузки: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	rec, err := h.photos.UploadSingle(services.SingleUpload{
		Data:         data,
		OriginalName: fh.Filename,
		Title:        c.PostForm("name"),
		Date:         c.PostForm("date"),
		Time:         c.PostForm("time"),
		Location:     c.PostForm("location"),
		Description:  c.PostForm("description"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Successfully uploaded %s", rec.OriginalName),
		"photoData": rec,
	})
}

// BulkUpload обрабатывает POST /api/bulk_upload: multipart-форма со списком
// файлов 'images[]'. Ошибки отдельных файлов изолируются в сервисе.
func (h *Handler) BulkUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		log.Printf("ОШИБКА: разбор multipart-формы массовой загрузки: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image files provided"})
		return
	}

	fileHeaders := form.File["images[]"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files selected"})
		return
	}
	if len(fileHeaders) > MaxBulkFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Too many files (max %d)", MaxBulkFiles)})
		return
	}

	files := make([]services.BulkFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, err := readFormFile(fh)
		if err != nil {
			// Нечитаемый файл пропускаем, как и файл с недопустимым типом.
			log.Printf("ПРЕДУПРЕЖДЕНИЕ: файл '%s' пропущен при массовой загрузке: %v", fh.Filename, err)
			continue
		}
		files = append(files, services.BulkFile{Data: data, OriginalName: fh.Filename})
	}

	records, err := h.photos.UploadBulk(c.Request.Context(), files)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    fmt.Sprintf("Successfully uploaded and analyzed %d photos!", len(records)),
		"photosData": records,
	})
}

// GetPhotos обрабатывает GET /api/photos: все записи, сгруппированные по дате.
func (h *Handler) GetPhotos(c *gin.Context) {
	organized, total, err := h.photos.ListAll()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"photos":      organized,
		"totalPhotos": total,
	})
}

// GetPhotosByDate обрабатывает GET /api/photos/by-date/:date.
func (h *Handler) GetPhotosByDate(c *gin.Context) {
	date := c.Param("date")
	photos, err := h.photos.ListByDate(date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"photos": photos,
		"date":   date,
	})
}

// GetMetadata обрабатывает GET /api/metadata: плоское отображение id -> запись.
func (h *Handler) GetMetadata(c *gin.Context) {
	metadata, err := h.photos.Metadata()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metadata)
}

// GetStats обрабатывает GET /api/stats.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.photos.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UpdateMetadata обрабатывает POST /api/update_metadata: частичное обновление
// полей записи, опционально с физическим поворотом файла.
func (h *Handler) UpdateMetadata(c *gin.Context) {
	var req services.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo ID is required"})
		return
	}

	rec, err := h.photos.Update(req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Photo metadata updated successfully",
		"photoData": rec,
	})
}

// DeletePhoto обрабатывает POST /api/delete_photo: тело {"id": ...}.
func (h *Handler) DeletePhoto(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo ID is required"})
		return
	}

	if err := h.photos.Delete(req.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully deleted photo with ID %s", req.ID),
	})
}

// ServePhoto обрабатывает GET /photos/:filename: отдает байты изображения.
// Имя файла проходит санитизацию от обхода пути до обращения к диску.
// Query-параметр cache-busting (?v=lastModified) обрабатывается прозрачно.
func (h *Handler) ServePhoto(c *gin.Context) {
	fileName := c.Param("filename")
	fullPath, err := h.photos.Images().Path(fileName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		respondError(c, err)
		return
	}
	c.File(fullPath)
}

// NotFound - обработчик неизвестных маршрутов.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
}
