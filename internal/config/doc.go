// Package config собирает конфигурацию станции из переменных окружения.
//
// Перед чтением подгружаются .env и .env.local (godotenv). Значения,
// уже заданные окружением, имеют приоритет.
package config
