// Package knowledge holds the static symptom and medication fact sheets that are
// spliced into the system prompt before a question reaches the model.
//
// The tables are initialised once and never modified, so they are shared across
// requests without locking.
package knowledge

import (
	"strings"
)

// SymptomEntry is the fact sheet for one symptom phrase.
type SymptomEntry struct {
	Symptom    string
	Conditions []string
	Advice     string
}

// DrugEntry is the fact sheet for one medication.
type DrugEntry struct {
	Drug         string
	Dosage       string
	Interactions string
	SideEffects  string
}

// tipCount is how many wellness tips a wellness query receives. Always the
// leading tips of the list.
const tipCount = 3

// wellnessTriggers switch on the tips block.
var wellnessTriggers = []string{"health", "wellness", "tips"}

var symptoms = []SymptomEntry{
	{
		Symptom:    "headache",
		Conditions: []string{"Tension headache", "Migraine", "Cluster headache", "Sinus headache"},
		Advice:     "Stay hydrated, rest in a dark room, consider over-the-counter pain relievers. Seek medical attention if severe or persistent.",
	},
	{
		Symptom:    "fever",
		Conditions: []string{"Viral infection", "Bacterial infection", "Heat exhaustion", "Inflammatory conditions"},
		Advice:     "Rest, stay hydrated, monitor temperature. Seek medical care if fever exceeds 103°F (39.4°C) or persists.",
	},
	{
		Symptom:    "chest pain",
		Conditions: []string{"Heart attack", "Angina", "Muscle strain", "Acid reflux", "Anxiety"},
		Advice:     "SEEK IMMEDIATE MEDICAL ATTENTION if severe, crushing, or accompanied by shortness of breath, nausea, or sweating.",
	},
	{
		Symptom:    "shortness of breath",
		Conditions: []string{"Asthma", "Heart failure", "Pneumonia", "Anxiety", "Pulmonary embolism"},
		Advice:     "SEEK IMMEDIATE MEDICAL ATTENTION if severe or sudden onset. Rest and avoid exertion.",
	},
}

var drugs = []DrugEntry{
	{
		Drug:         "ibuprofen",
		Dosage:       "Adults: 200-400mg every 4-6 hours, max 1200mg/day",
		Interactions: "Avoid with blood thinners, ACE inhibitors, lithium",
		SideEffects:  "Stomach upset, increased bleeding risk, kidney problems with long-term use",
	},
	{
		Drug:         "acetaminophen",
		Dosage:       "Adults: 325-650mg every 4-6 hours, max 3000mg/day",
		Interactions: "Caution with alcohol, warfarin",
		SideEffects:  "Liver damage with overdose, rare skin reactions",
	},
	{
		Drug:         "aspirin",
		Dosage:       "Adults: 325-650mg every 4 hours for pain, 81mg daily for heart protection",
		Interactions: "Avoid with blood thinners, increases bleeding risk",
		SideEffects:  "Stomach bleeding, tinnitus, Reye's syndrome in children",
	},
}

var wellnessTips = []string{
	"Maintain a balanced diet rich in fruits, vegetables, and whole grains",
	"Exercise regularly - aim for 150 minutes of moderate activity per week",
	"Get 7-9 hours of quality sleep each night",
	"Stay hydrated by drinking 8 glasses of water daily",
	"Practice stress management through meditation or relaxation techniques",
	"Schedule regular check-ups with your healthcare provider",
	"Avoid smoking and limit alcohol consumption",
	"Wash hands frequently to prevent infections",
}

// Matches is the result of matching one query against the tables.
type Matches struct {
	Symptoms []SymptomEntry
	Drugs    []DrugEntry
	Tips     []string
}

// Empty reports whether nothing matched.
func (m Matches) Empty() bool {
	return len(m.Symptoms) == 0 && len(m.Drugs) == 0 && len(m.Tips) == 0
}

// Context renders the matched entries as the context string: symptom blocks,
// then drug blocks, then the tips block.
func (m Matches) Context() string {
	var b strings.Builder
	for _, s := range m.Symptoms {
		b.WriteString("\nSymptom: ")
		b.WriteString(s.Symptom)
		b.WriteString("\nPossible conditions: ")
		b.WriteString(strings.Join(s.Conditions, ", "))
		b.WriteString("\nAdvice: ")
		b.WriteString(s.Advice)
		b.WriteString("\n")
	}
	for _, d := range m.Drugs {
		b.WriteString("\nMedication: ")
		b.WriteString(d.Drug)
		b.WriteString("\nDosage: ")
		b.WriteString(d.Dosage)
		b.WriteString("\nInteractions: ")
		b.WriteString(d.Interactions)
		b.WriteString("\nSide Effects: ")
		b.WriteString(d.SideEffects)
		b.WriteString("\n")
	}
	if len(m.Tips) > 0 {
		b.WriteString("\nHealth Tips:\n")
		for i, tip := range m.Tips {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("• ")
			b.WriteString(tip)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Match lowercases the query and collects every entry whose key occurs in it as
// a contiguous substring. The returned entries are copies.
func Match(query string) Matches {
	lower := strings.ToLower(query)
	var m Matches
	for _, s := range symptoms {
		if strings.Contains(lower, s.Symptom) {
			s.Conditions = append([]string(nil), s.Conditions...)
			m.Symptoms = append(m.Symptoms, s)
		}
	}
	for _, d := range drugs {
		if strings.Contains(lower, d.Drug) {
			m.Drugs = append(m.Drugs, d)
		}
	}
	for _, trigger := range wellnessTriggers {
		if strings.Contains(lower, trigger) {
			m.Tips = append([]string(nil), wellnessTips[:tipCount]...)
			break
		}
	}
	return m
}

// Search returns the context string for query, or "" when nothing matches.
func Search(query string) string {
	return Match(query).Context()
}

// Symptoms returns a copy of the symptom table in declaration order.
func Symptoms() []SymptomEntry {
	out := make([]SymptomEntry, len(symptoms))
	for i, s := range symptoms {
		s.Conditions = append([]string(nil), s.Conditions...)
		out[i] = s
	}
	return out
}

// Drugs returns a copy of the medication table in declaration order.
func Drugs() []DrugEntry {
	out := make([]DrugEntry, len(drugs))
	copy(out, drugs)
	return out
}

// WellnessTips returns a copy of the full tips list.
func WellnessTips() []string {
	return append([]string(nil), wellnessTips...)
}
