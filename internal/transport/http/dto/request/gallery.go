package request

type CreateGalleryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type RenameGalleryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type GalleryPropertiesRequest struct {
	ThumbnailWidth  int  `json:"thumbnail_width" validate:"required,gt=0,lte=4096"`
	ThumbnailHeight int  `json:"thumbnail_height" validate:"required,gt=0,lte=4096"`
	KeepAspectRatio bool `json:"keep_aspect_ratio"`
	CropToFit       bool `json:"crop_to_fit"`
}

type ImagePropertiesRequest struct {
	Title   string `json:"title" validate:"max=255"`
	Caption string `json:"caption" validate:"max=2000"`
}

// ImageOrderRequest имена файлов в желаемом порядке
type ImageOrderRequest struct {
	Names []string `json:"names" validate:"dive,required"`
}
