package main

import (
	// Стандартные библиотеки
	"log"           // Для логирования
	"os"            // Для переменных окружения и файловой системы
	"path/filepath" // Для работы с путями (получение директории БД)
	"strconv"
	"time"

	// Внутренние пакеты проекта
	"github.com/Avdh512/DrawingPika/internal/database"
	"github.com/Avdh512/DrawingPika/internal/handlers"
	"github.com/Avdh512/DrawingPika/internal/middleware"
	"github.com/Avdh512/DrawingPika/internal/services"

	// Сторонние библиотеки
	"github.com/gin-gonic/gin"  // Основной веб-фреймворк
	"github.com/joho/godotenv" // Загрузка .env файла
)

// getEnv получает значение переменной окружения по ключу.
// Если переменная не установлена, возвращает значение fallback и логирует предупреждение.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	log.Printf("Переменная окружения %s не установлена, используется значение по умолчанию: %s", key, fallback)
	return fallback
}

// checkOrCreateDir проверяет существование директории по указанному пути.
// Если директория не существует, пытается её создать со всеми родительскими.
// При любой невосстановимой проблеме завершает программу.
func checkOrCreateDir(dirPath string) {
	if dirPath == "" {
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: Путь к директории не может быть пустым.")
	}
	// Предотвращаем случайное использование корня или текущей директории
	if dirPath == "/" || dirPath == "." {
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: Указан небезопасный путь для создания директории: %s", dirPath)
	}

	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		log.Printf("Папка %s не найдена, создаем...", dirPath)
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: не удалось создать папку %s: %v", dirPath, err)
		}
		log.Printf("Папка %s успешно создана.", dirPath)
		return
	}
	if err != nil {
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: ошибка при проверке папки %s: %v", dirPath, err)
	}
	if !info.IsDir() {
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: Путь %s существует, но не является директорией.", dirPath)
	}
	log.Printf("Папка %s найдена.", dirPath)
}

// openMetadataStore выбирает реализацию хранилища метаданных по конфигурации:
// 'sqlite' (таблица photos) или 'json' (плоский документ первого прототипа).
func openMetadataStore() services.MetadataStore {
	backend := getEnv("METADATA_BACKEND", "sqlite")
	switch backend {
	case "sqlite":
		dbPath := getEnv("DB_PATH", "./data/photos.db")
		log.Printf("Проверка директории для БД: %s", filepath.Dir(dbPath))
		checkOrCreateDir(filepath.Dir(dbPath))
		db, err := database.Open(dbPath)
		if err != nil {
			log.Fatalf("Ошибка инициализации базы данных: %v", err)
		}
		return database.NewSQLiteStore(db)
	case "json":
		metadataFile := getEnv("METADATA_FILE", "./data/photo_metadata.json")
		log.Printf("Проверка директории для файла метаданных: %s", filepath.Dir(metadataFile))
		checkOrCreateDir(filepath.Dir(metadataFile))
		log.Printf("Метаданные хранятся в JSON-документе: %s", metadataFile)
		return database.NewJSONStore(metadataFile)
	default:
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: неизвестный METADATA_BACKEND '%s' (допустимо: sqlite, json)", backend)
		return nil
	}
}

// main - точка входа приложения.
func main() {
	// --- 1. Конфигурация ---
	// .env необязателен: боевые переменные приходят из окружения.
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения.")
	}

	listenPort := getEnv("LISTEN_PORT", "8080")
	uploadPath := getEnv("UPLOAD_PATH", "./photos")
	staticDir := getEnv("STATIC_DIR", "./frontend/public")
	ollamaURL := getEnv("OLLAMA_URL", "http://localhost:11434")
	ollamaModel := getEnv("OLLAMA_MODEL", "llava")

	timeoutSec, err := strconv.Atoi(getEnv("OLLAMA_TIMEOUT_SEC", "120"))
	if err != nil || timeoutSec <= 0 {
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: некорректное значение OLLAMA_TIMEOUT_SEC")
	}

	log.Printf("Проверка директории для загрузок: %s", uploadPath)
	checkOrCreateDir(uploadPath)

	// --- 2. Инициализация зависимостей ---
	store := openMetadataStore()
	defer store.Close()

	imageStore := services.NewImageStore(uploadPath)
	captioner := services.NewOllamaCaptioner(ollamaURL, ollamaModel, time.Duration(timeoutSec)*time.Second)
	photoService := services.NewPhotoService(store, imageStore, captioner)
	handler := handlers.New(photoService)

	// Устанавливаем режим работы Gin (ReleaseMode - меньше логов).
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// `nil` доверяет любому прокси - приемлемо за локальным reverse proxy.
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Fatalf("Ошибка установки доверенных прокси: %v", err)
	}

	// Максимальный размер multipart-формы, хранимой в памяти.
	router.MaxMultipartMemory = 32 << 20

	// --- 3. Маршруты ---
	// Статика фронтенда (тонкая обвязка, вне ядра системы).
	router.StaticFile("/", filepath.Join(staticDir, "index.html"))
	router.Static("/static", filepath.Join(staticDir, "static"))

	// Отдача самих фотографий; кеш запрещен, клиент подставляет
	// ?v=lastModified для cache-busting.
	router.GET("/photos/:filename", middleware.NoCache(), handler.ServePhoto)

	// JSON API. Все ответы с запретом кеширования: свежесть lastModified
	// обязательна для корректного cache-busting.
	api := router.Group("/api")
	api.Use(middleware.NoCache())
	{
		api.POST("/upload_single", handler.UploadSingle)
		api.POST("/bulk_upload", handler.BulkUpload)
		api.GET("/photos", handler.GetPhotos)
		api.GET("/photos/by-date/:date", handler.GetPhotosByDate)
		api.GET("/metadata", handler.GetMetadata)
		api.GET("/stats", handler.GetStats)
		api.POST("/update_metadata", handler.UpdateMetadata)
		api.POST("/delete_photo", handler.DeletePhoto)
	}

	// Неизвестные маршруты отдают структурированную 404.
	router.NoRoute(handlers.NotFound)

	// --- 4. Запуск сервера ---
	listenAddr := ":" + listenPort
	log.Printf("Фотодневник запускается на порту %s (загрузки: %s)", listenPort, uploadPath)
	if err := router.Run(listenAddr); err != nil {
		log.Fatalf("Не удалось запустить сервер: %v", err)
	}
}
