package middleware

import (
	// Сторонние библиотеки
	"github.com/gin-gonic/gin" // Основной фреймворк
)

// NoCache - Gin middleware, запрещающее кеширование ответов API.
// Клиенты ориентируются на lastModified для cache-busting, поэтому метаданные
// обязаны каждый раз приходить свежими: промежуточный кеш, отдавший старый
// ответ, показал бы устаревшие lastModified и сломал обновление превью.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Тройка заголовков покрывает и HTTP/1.1, и старые HTTP/1.0 прокси.
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")

		// Передаем управление следующему обработчику в цепочке.
		c.Next()
	}
}
