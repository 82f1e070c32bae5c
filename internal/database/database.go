package database

import (
	// Стандартные библиотеки
	"database/sql" // Основной пакет для работы с SQL базами данных
	"fmt"          // Для форматирования строк и ошибок
	"log"          // Для логирования
	"strings"      // Для сборки частичного UPDATE и анализа текста ошибок
	"time"         // Для таймаутов соединения

	// Внутренние пакеты
	"github.com/Avdh512/DrawingPika/internal/models"

	// Драйвер SQLite. Пустой импорт (_) регистрирует драйвер "sqlite"
	// в пакете database/sql.
	_ "modernc.org/sqlite"
)

// Open открывает соединение с базой данных SQLite и создает таблицу 'photos',
// если она еще не существует. Возвращает готовый пул соединений.
// Пул передается явно в NewSQLiteStore - глобальной переменной здесь
// сознательно нет, чтобы время жизни соединения контролировал вызывающий код.
func Open(dataSourceName string) (*sql.DB, error) {
	// Параметры DSN:
	// - _journal_mode=WAL: журналирование, более дружелюбное к параллельному чтению;
	// - _busy_timeout=5000: ожидание снятия блокировки до 5 секунд;
	// - _synchronous=NORMAL: компромисс между скоростью и надежностью.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dataSourceName)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии %s: %w", dataSourceName, err)
	}

	// Для SQLite ограничиваем пул одним активным соединением:
	// параллельная запись в один файл все равно сериализуется.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения с %s: %w", dataSourceName, err)
	}

	if err = createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при создании таблиц: %w", err)
	}

	log.Println("Успешно подключились к базе данных:", dataSourceName)
	return db, nil
}

// createTables создает таблицу 'photos' и индекс по дате съемки.
func createTables(db *sql.DB) error {
	photosTableSQL := `
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT NOT NULL PRIMARY KEY,      -- Уникальный идентификатор записи (UUID)
		title TEXT NOT NULL,               -- Название фотографии
		fileName TEXT NOT NULL UNIQUE,     -- Уникальное имя файла на сервере
		photoDateTime TEXT NOT NULL,       -- Дата и время снимка 'YYYY-MM-DDTHH:MM:SS'
		location TEXT,                     -- Место съемки
		description TEXT,                  -- Описание
		fileSize INTEGER,                  -- Размер файла в байтах
		uploadTime TEXT,                   -- Время загрузки (ISO-8601)
		lastModified TEXT,                 -- Время последнего изменения (ISO-8601)
		originalName TEXT                  -- Оригинальное имя файла при загрузке
	);`

	if _, err := db.Exec(photosTableSQL); err != nil {
		return fmt.Errorf("ошибка при создании таблицы photos: %w", err)
	}

	// Индекс ускоряет выборки по дате: и сортировку ORDER BY photoDateTime DESC,
	// и сканирование по префиксу даты.
	indexDateSQL := `CREATE INDEX IF NOT EXISTS idx_photos_photoDateTime ON photos (photoDateTime);`
	if _, err := db.Exec(indexDateSQL); err != nil {
		return fmt.Errorf("ошибка при создании индекса photoDateTime: %w", err)
	}

	return nil
}

// SQLiteStore реализует контракт хранилища метаданных поверх таблицы 'photos'.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore оборачивает готовый пул соединений в хранилище метаданных.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close закрывает пул соединений.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// photoColumns - единый список столбцов для SELECT-запросов,
// порядок должен совпадать с порядком сканирования в scanPhoto.
const photoColumns = "id, title, fileName, photoDateTime, location, description, fileSize, uploadTime, lastModified, originalName"

// scanPhoto читает одну строку результата в структуру PhotoRecord.
// location/description/uploadTime/lastModified/originalName могут быть NULL
// в старых данных, поэтому сканируются через sql.NullString.
func scanPhoto(row interface{ Scan(dest ...any) error }) (*models.PhotoRecord, error) {
	rec := &models.PhotoRecord{}
	var location, description, uploadTime, lastModified, originalName sql.NullString
	var fileSize sql.NullInt64

	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.FileName,
		&rec.PhotoDateTime,
		&location,
		&description,
		&fileSize,
		&uploadTime,
		&lastModified,
		&originalName,
	)
	if err != nil {
		return nil, err
	}

	rec.Location = location.String
	rec.Description = description.String
	rec.FileSize = fileSize.Int64
	rec.UploadTime = uploadTime.String
	rec.LastModified = lastModified.String
	rec.OriginalName = originalName.String
	// Поворот в таблице не хранится: файл всегда уже повернут физически.
	rec.Rotation = 0
	return rec, nil
}

// Insert сохраняет новую запись о фотографии.
// Возвращает models.ErrDuplicate при конфликте id или fileName.
func (s *SQLiteStore) Insert(rec *models.PhotoRecord) error {
	stmt, err := s.db.Prepare(`
		INSERT INTO photos (` + photoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса Insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		rec.ID,
		rec.Title,
		rec.FileName,
		rec.PhotoDateTime,
		rec.Location,
		rec.Description,
		rec.FileSize,
		rec.UploadTime,
		rec.LastModified,
		rec.OriginalName,
	)
	if err != nil {
		// Конфликт уникальности означает повтор id или fileName. При корректной
		// генерации UUID это не должно происходить, но контракт хранилища
		// обязывает различать эту ситуацию.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			log.Printf("КРИТИЧЕСКАЯ ОШИБКА: конфликт уникальности при вставке записи id=%s, fileName=%s", rec.ID, rec.FileName)
			return fmt.Errorf("вставка записи %s: %w", rec.ID, models.ErrDuplicate)
		}
		return fmt.Errorf("ошибка выполнения запроса Insert: %w", err)
	}
	return nil
}

// Update выполняет частичное обновление записи: затрагиваются только поля,
// заданные в upd, плюс lastModified - он записывается всегда.
// Возвращает обновленную запись целиком или models.ErrNotFound.
func (s *SQLiteStore) Update(id string, upd models.PhotoUpdate) (*models.PhotoRecord, error) {
	// Собираем SET-часть динамически, по образцу оригинального API:
	// отсутствующее поле в запрос не попадает вовсе.
	setClauses := []string{}
	args := []any{}

	if upd.Title != nil {
		setClauses = append(setClauses, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.PhotoDateTime != nil {
		setClauses = append(setClauses, "photoDateTime = ?")
		args = append(args, *upd.PhotoDateTime)
	}
	if upd.Location != nil {
		setClauses = append(setClauses, "location = ?")
		args = append(args, *upd.Location)
	}
	if upd.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, *upd.Description)
	}
	// lastModified обновляется безусловно - это сигнал cache-busting для клиентов.
	setClauses = append(setClauses, "lastModified = ?")
	args = append(args, upd.LastModified)
	args = append(args, id)

	query := "UPDATE photos SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса Update для id %s: %w", id, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения rowsAffected в Update для id %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("обновление записи %s: %w", id, models.ErrNotFound)
	}

	return s.GetByID(id)
}

// GetByID ищет запись по идентификатору. Возвращает models.ErrNotFound,
// если записи нет.
func (s *SQLiteStore) GetByID(id string) (*models.PhotoRecord, error) {
	row := s.db.QueryRow("SELECT "+photoColumns+" FROM photos WHERE id = ?", id)
	rec, err := scanPhoto(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("поиск записи %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка сканирования GetByID для %s: %w", id, err)
	}
	return rec, nil
}

// GetByFileName ищет запись по имени файла (обратный ключ к Image Store).
func (s *SQLiteStore) GetByFileName(fileName string) (*models.PhotoRecord, error) {
	row := s.db.QueryRow("SELECT "+photoColumns+" FROM photos WHERE fileName = ?", fileName)
	rec, err := scanPhoto(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("поиск записи по файлу %s: %w", fileName, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка сканирования GetByFileName для %s: %w", fileName, err)
	}
	return rec, nil
}

// DeleteByID удаляет запись. Возвращает models.ErrNotFound, если записи не было.
func (s *SQLiteStore) DeleteByID(id string) error {
	res, err := s.db.Exec("DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса DeleteByID для %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения rowsAffected в DeleteByID для %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("удаление записи %s: %w", id, models.ErrNotFound)
	}
	log.Printf("Запись о фотографии %s удалена из БД.", id)
	return nil
}

// All возвращает все записи, отсортированные по photoDateTime по убыванию.
func (s *SQLiteStore) All() ([]models.PhotoRecord, error) {
	rows, err := s.db.Query("SELECT " + photoColumns + " FROM photos ORDER BY photoDateTime DESC")
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса All: %w", err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// ByDatePrefix возвращает записи, чья дата (первые 10 символов photoDateTime)
// точно совпадает с date ('YYYY-MM-DD'), по убыванию photoDateTime.
func (s *SQLiteStore) ByDatePrefix(date string) ([]models.PhotoRecord, error) {
	rows, err := s.db.Query(
		"SELECT "+photoColumns+" FROM photos WHERE substr(photoDateTime, 1, 10) = ? ORDER BY photoDateTime DESC",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса ByDatePrefix для %s: %w", date, err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// collectPhotos вычитывает все строки курсора в срез записей.
func collectPhotos(rows *sql.Rows) ([]models.PhotoRecord, error) {
	photos := []models.PhotoRecord{}
	for rows.Next() {
		rec, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки photos: %w", err)
		}
		photos = append(photos, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения курсора photos: %w", err)
	}
	return photos, nil
}
