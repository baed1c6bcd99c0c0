package models

import "time"

// Folder папка в медиахранилище
type Folder struct {
	Name      string `json:"name"`
	MediaPath string `json:"media_path"`
}

// File файл в медиахранилище
type File struct {
	Name        string    `json:"name"`
	FolderName  string    `json:"folder_name"` // Путь к папке, в которой лежит файл
	Size        int64     `json:"size"`
	LastUpdated time.Time `json:"last_updated"`
}
