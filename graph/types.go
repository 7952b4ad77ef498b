package graph

import "time"

// Item is the subset of a driveItem the upload flow reports back.
type Item struct {
	ID         string
	Name       string
	Size       int64
	ETag       string
	WebURL     string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

type driveItemResponse struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Size                 int64  `json:"size"`
	ETag                 string `json:"eTag"`
	WebURL               string `json:"webUrl"`
	CreatedDateTime      string `json:"createdDateTime"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
}

func (d driveItemResponse) toItem() Item {
	return Item{
		ID:         d.ID,
		Name:       d.Name,
		Size:       d.Size,
		ETag:       d.ETag,
		WebURL:     d.WebURL,
		CreatedAt:  parseTime(d.CreatedDateTime),
		ModifiedAt: parseTime(d.LastModifiedDateTime),
	}
}

// parseTime returns the zero time for empty or malformed timestamps.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
