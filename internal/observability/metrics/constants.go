// Package metrics defines the Prometheus collectors of each zoolog component.
package metrics

// Operation labels
const (
	OpTranscribe   = "transcribe"
	OpStructure    = "structure"
	OpCreate       = "create_observation"
	OpAlert        = "emergency_alert"
	OpAddMedia     = "add_media"
	OpLogin        = "login"
	OpMe           = "me"
	OpListAnimals  = "list_animals"
	OpGetAnimal    = "get_animal"
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Histogram bucket parameters
const (
	BucketStart10ms  = 0.01
	BucketStart100ms = 0.1
	BucketStart1s    = 1.0
	BucketFactor2    = 2
	BucketCount10    = 10
	BucketCount12    = 12
)
