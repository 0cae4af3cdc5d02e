package server

import (
	"net/http"

	"golang.org/x/time/rate"
)

// Throttle ограничивает частоту решающих эндпоинтов одним общим лимитером.
// Без ожидания: при исчерпании токенов сразу 429, чтобы очередь запросов
// не копилась перед цепочкой.
func Throttle(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
