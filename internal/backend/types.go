// Package backend is the client for the zoo REST backend: authentication,
// animals, audio transcription and observation records.
package backend

import (
	"io"
	"time"
)

// Config holds configuration for the backend client
type Config struct {
	BaseURL        string        `json:"base_url"`
	Timeout        time.Duration `json:"timeout"`
	UserAgent      string        `json:"user_agent"`
	StructurePath  string        `json:"structure_path"` // optional form structuring endpoint, empty = disabled
	AnimalCacheTTL time.Duration `json:"animal_cache_ttl"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		Timeout:        60 * time.Second,
		UserAgent:      "zoolog",
		AnimalCacheTTL: 5 * time.Minute,
	}
}

// API paths
const (
	pathLogin          = "/api/auth/login"
	pathMe             = "/api/auth/me"
	pathAnimals        = "/api/animals/"
	pathObservations   = "/api/observations/"
	pathTranscribe     = "/api/observations/audio-transcribe"
	pathEmergencyAlert = "/api/observations/emergency-alert"
	pathAddMediaFmt    = "/api/observations/%s/add-media"
)

// DefaultTokenLifetime applies when the login response carries no expires_in.
// The backend issues 30 minute JWTs.
const DefaultTokenLifetime = 30 * time.Minute

// User is the authenticated account returned by /api/auth/me
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Animal is one animal record
type Animal struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	Number      string    `json:"number,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Health      string    `json:"health"` // excellent, good, fair, poor
	LastChecked time.Time `json:"last_checked"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	Mood        string    `json:"mood,omitempty"`
	Appetite    string    `json:"appetite,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// FormData is the daily animal checklist
type FormData struct {
	DateOrDay                     string `json:"date_or_day"`
	AnimalObservedOnTime          bool   `json:"animal_observed_on_time"`
	CleanDrinkingWaterProvided    bool   `json:"clean_drinking_water_provided"`
	EnclosureCleanedProperly      bool   `json:"enclosure_cleaned_properly"`
	NormalBehaviourStatus         bool   `json:"normal_behaviour_status"`
	NormalBehaviourDetails        string `json:"normal_behaviour_details"`
	FeedAndSupplementsAvailable   bool   `json:"feed_and_supplements_available"`
	FeedGivenAsPrescribed         bool   `json:"feed_given_as_prescribed"`
	OtherAnimalRequirements       string `json:"other_animal_requirements"`
	InchargeSignature             string `json:"incharge_signature"`
	DailyAnimalHealthMonitoring   string `json:"daily_animal_health_monitoring"`
	CarnivorousAnimalFeedingChart string `json:"carnivorous_animal_feeding_chart"`
	MedicineStockRegister         string `json:"medicine_stock_register"`
	DailyWildlifeMonitoring       string `json:"daily_wildlife_monitoring"`
}

// CreateObservationRequest is the payload of POST /api/observations/
type CreateObservationRequest struct {
	AnimalID           string    `json:"animal_id,omitempty"`
	AnimalName         string    `json:"animal_name"`
	AudioText          string    `json:"audio_text,omitempty"`
	Date               string    `json:"date"` // YYYY-MM-DD
	IsEmergency        bool      `json:"is_emergency"`
	HasAnimalImages    bool      `json:"has_animal_images"`
	HasEnclosureImages bool      `json:"has_enclosure_images"`
	HasEmergencyVideo  bool      `json:"has_emergency_video"`
	FormData           *FormData `json:"form_data,omitempty"`
}

// Observation is the created observation record. Only the fields the client
// acts on are decoded.
type Observation struct {
	ID          string `json:"id"`
	AnimalID    string `json:"animal_id"`
	IsEmergency bool   `json:"is_emergency"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Transcription is the response of the audio transcription endpoint
type Transcription struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

// EmergencyAlert is the payload of POST /api/observations/emergency-alert
type EmergencyAlert struct {
	AnimalID      string `json:"animal_id"`
	Description   string `json:"description"`
	ObservationID string `json:"observation_id,omitempty"`
}

// StructureRequest is sent to the optional structuring endpoint
type StructureRequest struct {
	Text     string `json:"text"`
	Date     string `json:"date"`
	Language string `json:"language"`
}

// MediaType is the media_type form field of add-media
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaResult is the add-media response
type MediaResult struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// File is one binary part of a multipart upload
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// apiError is the FastAPI error body
type apiError struct {
	Detail any `json:"detail"`
}
