package core

import (
	"strings"
	"time"
)

// PlantInfo is the identification and care record produced for one image.
// The JSON field names are the contract with both the model prompt and the UI.
type PlantInfo struct {
	CommonName      string          `json:"commonName"`
	ScientificName  string          `json:"scientificName"`
	Family          string          `json:"family"`
	Characteristics Characteristics `json:"characteristics"`
	Care            Care            `json:"care"`
	Facts           []string        `json:"facts"`
}

// Characteristics describes how the plant looks and behaves.
type Characteristics struct {
	Appearance  string `json:"appearance"`
	GrowthHabit string `json:"growthHabit"`
	Toxicity    string `json:"toxicity"`
}

// Care holds basic growing requirements.
type Care struct {
	Light string `json:"light"`
	Water string `json:"water"`
	Soil  string `json:"soil"`
}

// Normalize trims surrounding whitespace from every field and drops blank facts.
// A nil Facts slice stays nil so that "absent" remains distinguishable from "empty".
func (p PlantInfo) Normalize() PlantInfo {
	out := PlantInfo{
		CommonName:     strings.TrimSpace(p.CommonName),
		ScientificName: strings.TrimSpace(p.ScientificName),
		Family:         strings.TrimSpace(p.Family),
		Characteristics: Characteristics{
			Appearance:  strings.TrimSpace(p.Characteristics.Appearance),
			GrowthHabit: strings.TrimSpace(p.Characteristics.GrowthHabit),
			Toxicity:    strings.TrimSpace(p.Characteristics.Toxicity),
		},
		Care: Care{
			Light: strings.TrimSpace(p.Care.Light),
			Water: strings.TrimSpace(p.Care.Water),
			Soil:  strings.TrimSpace(p.Care.Soil),
		},
	}
	if p.Facts != nil {
		out.Facts = make([]string, 0, len(p.Facts))
		for _, f := range p.Facts {
			if f = strings.TrimSpace(f); f != "" {
				out.Facts = append(out.Facts, f)
			}
		}
	}
	return out
}

// Identified reports whether both names are present.
func (p PlantInfo) Identified() bool {
	return strings.TrimSpace(p.CommonName) != "" && strings.TrimSpace(p.ScientificName) != ""
}

// MissingFields returns the JSON paths of required fields that are empty.
// Facts counts as missing only when absent; an empty list is valid.
func (p PlantInfo) MissingFields() []string {
	var missing []string
	check := func(path, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, path)
		}
	}
	check("commonName", p.CommonName)
	check("scientificName", p.ScientificName)
	check("family", p.Family)
	check("characteristics.appearance", p.Characteristics.Appearance)
	check("characteristics.growthHabit", p.Characteristics.GrowthHabit)
	check("characteristics.toxicity", p.Characteristics.Toxicity)
	check("care.light", p.Care.Light)
	check("care.water", p.Care.Water)
	check("care.soil", p.Care.Soil)
	if p.Facts == nil {
		missing = append(missing, "facts")
	}
	return missing
}

// Image is a decoded upload ready to be sent to the model.
type Image struct {
	Data     []byte
	MIMEType string
	// Hash is the hex SHA-256 of Data.
	Hash string
}

// Size returns the decoded size in bytes.
func (i Image) Size() int {
	return len(i.Data)
}

// Identification is a completed identification as recorded in history.
type Identification struct {
	ID         string        `json:"id"`
	ImageHash  string        `json:"image_hash"`
	MIMEType   string        `json:"mime_type"`
	ImageBytes int           `json:"image_bytes"`
	Model      string        `json:"model"`
	Plant      PlantInfo     `json:"plant"`
	Cached     bool          `json:"cached"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Feedback is a user-submitted note about the app or an identification.
type Feedback struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PlantName string    `json:"plantName"`
	Message   string    `json:"feedback"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}
