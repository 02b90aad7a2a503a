package tts

import (
	"strings"
	"time"
)

// Estimated timelines carry a reduced confidence so downstream consumers
// can tell them apart from provider-supplied phoneme timing.
const estimatedConfidence = 0.5

// letterToPhoneme approximates an ARPABET symbol per letter for text
// without real phoneme data. Digraphs (th, ch, sh) are handled before
// this table applies.
var letterToPhoneme = map[byte]string{
	'a': "AA", 'b': "B", 'c': "K", 'd': "D", 'e': "EH",
	'f': "F", 'g': "G", 'h': "HH", 'i': "IH", 'j': "JH",
	'k': "K", 'l': "L", 'm': "M", 'n': "N", 'o': "OW",
	'p': "P", 'q': "K", 'r': "R", 's': "S", 't': "T",
	'u': "UW", 'v': "V", 'w': "W", 'x': "K", 'y': "Y",
	'z': "Z",
}

// EstimateTimeline approximates a timestamped phoneme sequence from raw
// text, for providers without phoneme support. When duration is
// positive the timeline is scaled to fit it; otherwise natural per-class
// durations apply (vowels 100 ms, sibilant fricatives 80 ms, other
// consonants 60 ms, word gaps 80 ms, sentence pauses 150 ms).
func EstimateTimeline(text string, duration time.Duration) []Phoneme {
	clean := strings.ToLower(strings.TrimSpace(text))
	if clean == "" {
		return []Phoneme{{Symbol: "sil", Onset: 0, Confidence: 1}}
	}

	phonemes := make([]Phoneme, 0, len(clean)/2+2)
	phonemes = append(phonemes, Phoneme{Symbol: "sil", Onset: 0, Confidence: 1})

	cursor := 50 * time.Millisecond
	chars := []byte(clean)

	for i := 0; i < len(chars); i++ {
		ch := chars[i]

		switch ch {
		case ' ', '\n', '\t':
			phonemes = append(phonemes, Phoneme{Symbol: "sil", Onset: cursor, Confidence: estimatedConfidence})
			cursor += 80 * time.Millisecond
			continue
		case '.', '!', '?':
			phonemes = append(phonemes, Phoneme{Symbol: "sil", Onset: cursor, Confidence: estimatedConfidence})
			cursor += 150 * time.Millisecond
			continue
		case ',', ';', ':':
			phonemes = append(phonemes, Phoneme{Symbol: "sil", Onset: cursor, Confidence: estimatedConfidence})
			cursor += 100 * time.Millisecond
			continue
		}

		var symbol string
		if i < len(chars)-1 {
			switch string(chars[i : i+2]) {
			case "th":
				symbol = "TH"
				i++
			case "ch":
				symbol = "CH"
				i++
			case "sh":
				symbol = "SH"
				i++
			}
		}
		if symbol == "" {
			var ok bool
			symbol, ok = letterToPhoneme[ch]
			if !ok {
				continue
			}
		}

		phonemes = append(phonemes, Phoneme{Symbol: symbol, Onset: cursor, Confidence: estimatedConfidence})

		switch ch {
		case 'a', 'e', 'i', 'o', 'u':
			cursor += 100 * time.Millisecond
		case 's', 'z', 'f', 'v':
			cursor += 80 * time.Millisecond
		default:
			cursor += 60 * time.Millisecond
		}
	}

	phonemes = append(phonemes, Phoneme{Symbol: "sil", Onset: cursor, Confidence: 1})

	if duration > 0 && cursor > 0 {
		scale := float64(duration) / float64(cursor)
		for i := range phonemes {
			phonemes[i].Onset = time.Duration(float64(phonemes[i].Onset) * scale)
		}
	}
	return phonemes
}

// TimelineDuration returns the onset of the last entry, the effective
// length of a timeline produced by EstimateTimeline.
func TimelineDuration(phonemes []Phoneme) time.Duration {
	if len(phonemes) == 0 {
		return 0
	}
	return phonemes[len(phonemes)-1].Onset
}
