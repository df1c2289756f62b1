// Package objectstore хранит артефакты runs в S3-совместимом хранилище (MinIO).
//
// Каталог run — префикс ключа measurements/<run-id>/, идентификатор
// артефакта — полный ключ объекта в бакете.
package objectstore
