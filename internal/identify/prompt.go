// Package identify turns an uploaded plant photo into a validated PlantInfo.
// It owns prompt construction, image decoding and the defensive parsing of
// the model's free-text answer; the model itself sits behind core.PlantModel.
package identify

// plantPrompt asks for exactly the PlantInfo JSON shape. Keep the keys in sync
// with the json tags on core.PlantInfo.
const plantPrompt = `You are a plant identification expert. Identify the plant in this image and provide information in JSON format:
{
  "commonName": "Main common name",
  "scientificName": "Scientific name",
  "family": "Plant family name",
  "characteristics": {
    "appearance": "Brief description of physical appearance",
    "growthHabit": "Growth pattern and mature size",
    "toxicity": "Toxicity information for people and pets"
  },
  "care": {
    "light": "Light requirements",
    "water": "Watering needs",
    "soil": "Soil preferences"
  },
  "facts": ["Interesting fact 1", "Interesting fact 2"]
}

Answer with the JSON object only. If the image does not show a plant, or you cannot identify it, return the same object with "commonName" and "scientificName" set to empty strings.`

// BuildPrompt returns the instruction text sent alongside the image.
func BuildPrompt() string {
	return plantPrompt
}
