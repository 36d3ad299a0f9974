package cms

import (
	"fmt"
	"time"
)

// Status is the publication state of a record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ApplyDefaultStatus fills in draft when record has no status and rejects
// unknown values.
func ApplyDefaultStatus(record Item) error {
	var status Status
	switch v := record[FieldStatus].(type) {
	case nil:
	case string:
		status = Status(v)
	case Status:
		status = v
	default:
		return fmt.Errorf("status %v is not a string: %w", v, ErrInvalidArgument)
	}

	if status == "" {
		record[FieldStatus] = string(StatusDraft)
		return nil
	}
	if !status.Valid() {
		return fmt.Errorf("status %q is not one of draft, published, archived: %w", status, ErrInvalidArgument)
	}
	record[FieldStatus] = string(status)
	return nil
}

// Base holds the bookkeeping fields shared by every record kind.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy"`
	Status    Status    `json:"status"`
}

// Meta returns the bookkeeping fields.
func (b Base) Meta() Base { return b }

// Entity is implemented by every concrete record kind.
type Entity interface {
	Meta() Base
	CollectionName() string
}

// Job is an open position listed on the careers page.
type Job struct {
	Base
	Title          string   `json:"title"`
	Department     string   `json:"department,omitempty"`
	Location       string   `json:"location,omitempty"`
	EmploymentType string   `json:"employmentType,omitempty"`
	Category       string   `json:"category,omitempty"`
	Description    string   `json:"description,omitempty"`
	Requirements   []string `json:"requirements,omitempty"`
	Salary         string   `json:"salary,omitempty"`
	Image          string   `json:"image,omitempty"`
}

func (Job) CollectionName() string { return CollectionJobs }

// BlogPost is an article on the blog.
type BlogPost struct {
	Base
	Title         string   `json:"title"`
	Slug          string   `json:"slug,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	Content       string   `json:"content,omitempty"`
	Author        string   `json:"author,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	FeaturedImage string   `json:"featuredImage,omitempty"`
}

func (BlogPost) CollectionName() string { return CollectionBlog }

// Service is an offering described on the services page.
type Service struct {
	Base
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Category    string   `json:"category,omitempty"`
	Features    []string `json:"features,omitempty"`
	Image       string   `json:"image,omitempty"`
}

func (Service) CollectionName() string { return CollectionServices }

// Testimonial is a client review.
type Testimonial struct {
	Base
	ClientName  string `json:"clientName"`
	ClientTitle string `json:"clientTitle,omitempty"`
	Company     string `json:"company,omitempty"`
	ReviewText  string `json:"reviewText,omitempty"`
	Rating      int    `json:"rating,omitempty"`
	ClientImage string `json:"clientImage,omitempty"`
}

func (Testimonial) CollectionName() string { return CollectionTestimonials }

// TeamMember is a staff bio.
type TeamMember struct {
	Base
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Email    string `json:"email,omitempty"`
	LinkedIn string `json:"linkedIn,omitempty"`
	Photo    string `json:"photo,omitempty"`
}

func (TeamMember) CollectionName() string { return CollectionTeam }

// MediaAsset describes an uploaded binary. The binary itself lives in a Vault.
type MediaAsset struct {
	Base
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	Tags         []string  `json:"tags"`
	UploadedAt   time.Time `json:"uploadedAt"`
	UploadedBy   string    `json:"uploadedBy"`
}

func (MediaAsset) CollectionName() string { return CollectionMedia }
