// Package viseme classifies audio features into mouth-shape visemes and
// drives the lip-sync side of the shared morph buffer.
package viseme

// Name identifies one of the 15 mouth shapes used by the rendering
// layer. The set and ordering follow the Oculus lip-sync convention.
type Name string

const (
	Sil Name = "sil" // silence
	PP  Name = "PP"  // p, b, m
	FF  Name = "FF"  // f, v
	TH  Name = "TH"  // th, dh
	DD  Name = "DD"  // t, d
	KK  Name = "kk"  // k, g
	CH  Name = "CH"  // ch, j, sh, zh
	SS  Name = "SS"  // s, z
	NN  Name = "nn"  // n, l, ng
	RR  Name = "RR"  // r
	AA  Name = "aa"  // open vowels
	E   Name = "E"   // mid front vowels
	I   Name = "I"   // close front vowels
	O   Name = "O"   // rounded back vowels
	U   Name = "U"   // close rounded vowels
)

// indexOf fixes the 0-14 viseme indices.
var indexOf = map[Name]int{
	Sil: 0, PP: 1, FF: 2, TH: 3, DD: 4,
	KK: 5, CH: 6, SS: 7, NN: 8, RR: 9,
	AA: 10, E: 11, I: 12, O: 13, U: 14,
}

// Viseme is one classified mouth shape, produced per audio frame.
type Viseme struct {
	Name      Name    `json:"name"`
	Index     int     `json:"index"`     // 0-14
	Intensity float64 `json:"intensity"` // 0-1
}

// New builds a Viseme with its index resolved and intensity clamped.
func New(name Name, intensity float64) Viseme {
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}
	return Viseme{Name: name, Index: indexOf[name], Intensity: intensity}
}

// MorphKey returns the morph-target key this viseme writes, namespaced
// so the lip-sync loop never collides with expression keys.
func (v Viseme) MorphKey() string {
	return "viseme_" + string(v.Name)
}

// phonemeToViseme maps the 39-symbol ARPABET phoneme taxonomy (plus the
// "sil" marker) to the 15-viseme set. A pure lookup: identical input
// always yields the identical viseme.
var phonemeToViseme = map[string]Name{
	"sil": Sil,

	// Bilabial stops and nasal
	"P": PP, "B": PP, "M": PP,

	// Labiodental fricatives
	"F": FF, "V": FF,

	// Dental fricatives
	"TH": TH, "DH": TH,

	// Alveolar stops
	"T": DD, "D": DD,

	// Laterals and remaining nasals
	"L": NN, "N": NN, "NG": NN,

	// Sibilants
	"S": SS, "Z": SS,

	// Post-alveolar affricates and fricatives
	"CH": CH, "JH": CH, "SH": CH, "ZH": CH,

	// Rhotics
	"R": RR, "ER": RR,

	// Velars
	"K": KK, "G": KK,

	// Glottal: open mouth
	"HH": AA,

	// Vowels
	"AA": AA, "AE": AA, "AH": AA, "AW": AA, "AY": AA,
	"EH": E, "EY": E,
	"IH": I, "IY": I, "Y": I,
	"AO": O, "OW": O, "OY": O,
	"UH": U, "UW": U, "W": U,
}

// FromPhoneme maps a phoneme symbol to its viseme name. Unknown symbols
// fall back to silence.
func FromPhoneme(phoneme string) Name {
	if v, ok := phonemeToViseme[phoneme]; ok {
		return v
	}
	return Sil
}
