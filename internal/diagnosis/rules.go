package diagnosis

// RuleSet is the fixed symptom-to-condition knowledge the rule engine scores
// against, plus the candidate vocabulary handed to the remote classifier.
// A RuleSet is built once at startup and never mutated afterwards.
type RuleSet struct {
	// SymptomConditions maps a normalized symptom to the conditions it
	// suggests. Keys must be lower-case and trimmed.
	SymptomConditions map[string][]string

	// CandidateConditions is the classification label vocabulary.
	CandidateConditions []string
}

// DefaultRuleSet returns the built-in symptom table and condition vocabulary
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		SymptomConditions: map[string][]string{
			"fever":               {"Common Cold", "Influenza", "COVID-19"},
			"cough":               {"Common Cold", "Influenza", "COVID-19", "Bronchitis"},
			"headache":            {"Common Cold", "Influenza", "Migraine", "Tension Headache"},
			"fatigue":             {"Common Cold", "Influenza", "COVID-19"},
			"sore throat":         {"Common Cold", "Influenza", "Strep Throat"},
			"runny nose":          {"Common Cold", "Allergic Rhinitis"},
			"shortness of breath": {"Asthma", "COVID-19", "Pneumonia"},
			"chest pain":          {"Pneumonia", "Bronchitis", "Anxiety"},
			"nausea":              {"Gastroenteritis", "Migraine", "Food Poisoning"},
			"vomiting":            {"Gastroenteritis", "Food Poisoning"},
			"diarrhea":            {"Gastroenteritis", "Food Poisoning"},
			"abdominal pain":      {"Gastroenteritis", "Appendicitis", "Food Poisoning"},
			"rash":                {"Allergic Reaction", "Eczema", "Psoriasis"},
			"joint pain":          {"Arthritis", "Influenza", "Lyme Disease"},
			"dizziness":           {"Vertigo", "Migraine", "Hypertension"},
			"ear pain":            {"Ear Infection", "Sinusitis"},
			"sinus pressure":      {"Sinusitis", "Common Cold"},
			"frequent urination":  {"Urinary Tract Infection", "Diabetes Type 2"},
			"burning urination":   {"Urinary Tract Infection"},
		},
		CandidateConditions: []string{
			"Common Cold", "Influenza", "COVID-19", "Allergic Rhinitis",
			"Bronchitis", "Pneumonia", "Asthma", "Sinusitis",
			"Gastroenteritis", "Migraine", "Tension Headache",
			"Hypertension", "Diabetes Type 2", "Urinary Tract Infection",
		},
	}
}
