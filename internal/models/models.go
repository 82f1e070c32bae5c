package models

// PhotoRecord представляет запись о фотографии дневника.
// Поля соответствуют столбцам таблицы 'photos' (SQLite-вариант) и ключам
// JSON-документа (файловый вариант). Теги `json:"..."` повторяют формат API:
// фронтенд читает именно эти имена полей.
type PhotoRecord struct {
	ID            string `json:"id"`            // Уникальный идентификатор записи (UUID, неизменяемый)
	Title         string `json:"title"`         // Название фотографии
	FileName      string `json:"fileName"`      // Уникальное имя файла на сервере (ключ к Image Store, неизменяемое)
	OriginalName  string `json:"originalName"`  // Оригинальное имя файла, как оно было при загрузке
	PhotoDateTime string `json:"photoDateTime"` // Дата и время снимка 'YYYY-MM-DDTHH:MM:SS' (редактируемое, ключ сортировки)
	Location      string `json:"location"`      // Место съемки (опционально)
	Description   string `json:"description"`   // Описание (опционально)
	FileSize      int64  `json:"fileSize"`      // Размер файла в байтах на момент загрузки
	UploadTime    string `json:"uploadTime"`    // Время загрузки в ISO-8601 (неизменяемое)
	LastModified  string `json:"lastModified"`  // Время последнего изменения; обновляется при КАЖДОЙ мутации (cache-busting)
	// Rotation хранится только для совместимости с JSON-документом первого
	// прототипа. Физический поворот применяется к файлу сразу, поэтому
	// сохраненное значение всегда 0.
	Rotation int `json:"rotation"`
}

// PhotoUpdate описывает частичное обновление записи.
// nil-указатель означает "поле не затрагивать". LastModified заполняется
// сервисом всегда, независимо от остальных полей.
type PhotoUpdate struct {
	Title         *string
	PhotoDateTime *string
	Location      *string
	Description   *string
	LastModified  string
}

// Empty сообщает, заданы ли какие-либо содержательные поля обновления.
func (u PhotoUpdate) Empty() bool {
	return u.Title == nil && u.PhotoDateTime == nil && u.Location == nil && u.Description == nil
}

// Caption - результат работы AI-аналитика (Caption Collaborator).
type Caption struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Stats - агрегированная статистика по дневнику.
// OldestPhoto/NewestPhoto - указатели, чтобы при пустом дневнике
// сериализоваться в null, как в оригинальном API.
type Stats struct {
	TotalPhotos   int            `json:"totalPhotos"`
	TotalDates    int            `json:"totalDates"`
	PhotosPerDate map[string]int `json:"photosPerDate"`
	OldestPhoto   *string        `json:"oldestPhoto"`
	NewestPhoto   *string        `json:"newestPhoto"`
}
