package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Avdh512/DrawingPika/internal/models"
)

// Captioner - внешний AI-помощник: по байтам изображения возвращает
// название и описание. Вызов НИКОГДА не возвращает ошибку - любой сбой
// подменяется текстом-заглушкой, чтобы не сорвать массовую загрузку.
type Captioner interface {
	Describe(ctx context.Context, imageData []byte) models.Caption
}

// captionPrompt просит модель вернуть строго JSON с названием и описанием.
const captionPrompt = "You are a professional artist who draw with pens and pencils. " +
	"Describe the key subjects and mood of this image in one 20-30 words, " +
	"then create a short, professional title and keep the title very simple english " +
	"and also keep the english as simple as possible . " +
	"Respond only with JSON in the format: {'title': '...', 'description': '...'}"

// Тексты-заглушки. Они видимы пользователю и входят в контракт API,
// менять их нельзя.
const (
	placeholderServerFailedTitle = "AI Server Failed"
	placeholderServerFailedDesc  = "AI server connection failed."
	placeholderParseFailedTitle  = "AI Failed to Title"
	placeholderParseFailedDesc   = "AI failed to generate a description."
	placeholderDefaultTitle      = "Untitled AI Photo"
	placeholderDefaultDesc       = "An AI-generated description could not be created for this image."
	placeholderAnalysisTitle     = "AI Analysis Error"
	placeholderAnalysisDesc      = "AI analysis failed due to an unexpected error."
)

// jsonObjectPattern выхватывает первый JSON-объект из свободного текста
// ответа модели ((?s) - точка захватывает и переводы строк).
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// OllamaCaptioner шлет изображение локальному Ollama-серверу (модель llava)
// и лениво разбирает его свободный текстовый ответ.
type OllamaCaptioner struct {
	baseURL string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewOllamaCaptioner создает клиента. timeout ограничивает каждый вызов:
// по истечении результат считается сбоем и подменяется заглушкой.
func NewOllamaCaptioner(baseURL, model string, timeout time.Duration) *OllamaCaptioner {
	return &OllamaCaptioner{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// ollamaRequest - тело запроса к /api/generate.
type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

// ollamaResponse - интересующая нас часть ответа.
type ollamaResponse struct {
	Response string `json:"response"`
}

// Describe запрашивает у модели название и описание изображения.
// Не возвращает ошибок: граница Caption Collaborator поглощает любые сбои
// (сеть, таймаут, непарсимый ответ) и отдает заглушку.
func (o *OllamaCaptioner) Describe(ctx context.Context, imageData []byte) models.Caption {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	payload := ollamaRequest{
		Model:  o.model,
		Prompt: captionPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(imageData)},
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ОШИБКА: не удалось сериализовать запрос к Ollama: %v", err)
		return models.Caption{Title: placeholderAnalysisTitle, Description: placeholderAnalysisDesc}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		log.Printf("ОШИБКА: не удалось построить запрос к Ollama: %v", err)
		return models.Caption{Title: placeholderAnalysisTitle, Description: placeholderAnalysisDesc}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		log.Printf("ОШИБКА: Ollama-сервер недоступен (он вообще запущен?): %v", err)
		return models.Caption{Title: placeholderServerFailedTitle, Description: placeholderServerFailedDesc}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("ОШИБКА: Ollama вернул статус %d", resp.StatusCode)
		return models.Caption{Title: placeholderServerFailedTitle, Description: placeholderServerFailedDesc}
	}

	var outer ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&outer); err != nil {
		log.Printf("ОШИБКА: не удалось разобрать ответ Ollama: %v", err)
		return models.Caption{Title: placeholderAnalysisTitle, Description: placeholderAnalysisDesc}
	}

	return parseModelOutput(outer.Response)
}

// parseModelOutput лениво разбирает свободный текст модели.
// Сначала пытаемся вытащить и распарсить JSON-объект; если не вышло,
// весь ответ становится описанием с фиксированным названием-заглушкой.
func parseModelOutput(raw string) models.Caption {
	fallback := func() models.Caption {
		desc := strings.TrimSpace(raw)
		if desc == "" {
			desc = placeholderParseFailedDesc
		}
		return models.Caption{Title: placeholderParseFailedTitle, Description: desc}
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		log.Printf("ОШИБКА: в ответе модели не найден JSON-объект: %s", raw)
		return fallback()
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(match), &fields); err != nil {
		log.Printf("ОШИБКА: не удалось распарсить JSON из ответа модели: %v. Сырой ответ: %s", err, raw)
		return fallback()
	}

	caption := models.Caption{
		Title:       placeholderDefaultTitle,
		Description: placeholderDefaultDesc,
	}
	if title, ok := fields["title"].(string); ok && title != "" {
		caption.Title = title
	}
	if desc, ok := fields["description"].(string); ok && desc != "" {
		caption.Description = desc
	}
	return caption
}

// Интерфейсная проверка на этапе компиляции.
var _ Captioner = (*OllamaCaptioner)(nil)
