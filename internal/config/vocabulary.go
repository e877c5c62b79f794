package config

// Stock vocabularies. Slot order is part of the stored vector layout:
// append new terms at the end and re-vectorize the catalog after edits.

// DefaultGenres returns the genre vocabulary.
func DefaultGenres() []string {
	return []string{
		"ambient", "post-rock", "indie", "lofi", "techno", "house", "hip-hop", "trap",
		"drum-and-bass", "classical", "jazz", "chill", "witch-house", "hyperpop",
		"experimental", "cloud-rap", "rock", "phonk", "memphis", "pop", "metal",
		"reggaeton", "edm", "blues", "soul", "funk", "r&b", "folkloric", "regional",
	}
}

// DefaultEmotions returns the emotion vocabulary.
func DefaultEmotions() []string {
	return []string{
		"triste", "melancólico", "reflexivo", "calmado", "nostálgico", "feliz",
		"enérgico", "épico", "oscuro", "agresivo", "romántico", "relajado",
		"inspirador", "motivador", "terror", "sereno",
	}
}

// DefaultInstruments returns the instrument vocabulary.
func DefaultInstruments() []string {
	return []string{
		"guitar", "piano", "synth", "drums", "bass", "strings", "vocals", "percussion",
		"fx", "brass", "flute", "violin", "trumpet", "cello", "saxophone", "ukulele",
		"harp", "accordion", "cowbell",
	}
}

// DefaultKinds returns the item kind vocabulary.
func DefaultKinds() []string {
	return []string{"loop", "one-shot"}
}
