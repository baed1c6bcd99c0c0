package dto

import "image_gallery/internal/domain/models"

// GalleryListItem элемент списка галерей без изображений
type GalleryListItem struct {
	Name      string `json:"name"`
	MediaPath string `json:"media_path"`
}

// GalleryResponse модель отображения галереи на публичной странице
type GalleryResponse struct {
	Name            string          `json:"name"`
	ThumbnailWidth  int             `json:"thumbnail_width"`
	ThumbnailHeight int             `json:"thumbnail_height"`
	Images          []ImageResponse `json:"images"`
}

type ImageResponse struct {
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Caption      string `json:"caption,omitempty"`
	SortOrder    int    `json:"sort_order"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// RejectedFile файл, не принятый при загрузке
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type UploadResult struct {
	Uploaded []string       `json:"uploaded"`
	Rejected []RejectedFile `json:"rejected"`
}

type PruneResult struct {
	Deleted int64 `json:"deleted"`
}

func NewGalleryListItems(galleries []models.Gallery) []GalleryListItem {
	items := make([]GalleryListItem, 0, len(galleries))
	for _, g := range galleries {
		items = append(items, GalleryListItem{Name: g.Name, MediaPath: g.MediaPath})
	}

	return items
}

func NewGalleryResponse(g *models.Gallery) GalleryResponse {
	resp := GalleryResponse{
		Name:            g.Name,
		ThumbnailWidth:  g.ThumbnailWidth,
		ThumbnailHeight: g.ThumbnailHeight,
		Images:          make([]ImageResponse, 0, len(g.Images)),
	}

	for _, img := range g.Images {
		resp.Images = append(resp.Images, ImageResponse{
			Name:         img.Name,
			Title:        img.Title,
			Caption:      img.Caption,
			SortOrder:    img.SortOrder,
			URL:          img.PublicURL,
			ThumbnailURL: img.ThumbnailURL,
		})
	}

	return resp
}
