package catalogue

// EquipmentCategory is the closed set of catalogue equipment families.
type EquipmentCategory string

const (
	CategoryFireFighting EquipmentCategory = "fire_fighting"
	CategoryFirstAid     EquipmentCategory = "first_aid"
	CategoryEvacuation   EquipmentCategory = "evacuation"
)

// Well-known equipment type identifiers referenced by the obligation rules.
const (
	EquipWaterExtinguisher  = "ext_eau"
	EquipCO2Extinguisher    = "ext_co2"
	EquipPowderExtinguisher = "ext_poudre"
	EquipDefibrillator      = "defibrillateur"
	EquipFirstAidKit        = "trousse_secours"
	EquipEyewashStation     = "rince_oeil"
	EquipFireBlanket        = "couverture_antifeu"
	EquipFireAlarm          = "alarme_incendie"
	EquipEmergencyLighting  = "eclairage_securite"
	EquipEvacuationPlan     = "plan_evacuation"
)

// Well-known certification type identifiers referenced by the training rules.
const (
	CertFirstAid        = "sst"
	CertFireResponse    = "epi"
	CertEvacuationDrill = "exercice_evacuation"
	CertElectrical      = "habilitation_electrique"
	CertForklift        = "caces_chariot"
	CertConstruction    = "caces_engins"
	CertAerialPlatform  = "caces_pemp"
	CertWorkAtHeight    = "travail_hauteur"
	CertManualHandling  = "gestes_postures"
)

// EquipmentTypeDef describes one catalogue equipment type. Immutable.
type EquipmentTypeDef struct {
	ID                  string            `json:"id"`
	Label               string            `json:"label"`
	Category            EquipmentCategory `json:"category"`
	PeriodicityMonths   *int              `json:"periodicity_months,omitempty"`
	MaxServiceLifeYears *int              `json:"max_service_life_years,omitempty"`
	Regulation          string            `json:"regulation,omitempty"`
	Notes               string            `json:"notes,omitempty"`
}

// CertificationTypeDef describes one catalogue certification type. Immutable.
type CertificationTypeDef struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Label          string `json:"label"`
	ValidityMonths int    `json:"validity_months"`
	// DeliverableInHouse marks trainings this provider can deliver itself.
	DeliverableInHouse bool   `json:"deliverable_in_house"`
	Regulation         string `json:"regulation,omitempty"`
	Rationale          string `json:"rationale,omitempty"`
}

// VerificationTypeDef describes one periodic-check type. Immutable.
type VerificationTypeDef struct {
	ID                string `json:"id"`
	Label             string `json:"label"`
	PeriodicityMonths int    `json:"periodicity_months"`
	Regulation        string `json:"regulation,omitempty"`
}

// Catalogue is an immutable set of reference tables constructed once and
// passed into every engine call. Multiple catalogues (per jurisdiction,
// per test) can coexist; nothing in this package holds mutable state.
type Catalogue struct {
	equipment      []EquipmentTypeDef
	certifications []CertificationTypeDef
	verifications  []VerificationTypeDef

	equipmentByID     map[string]EquipmentTypeDef
	certificationByID map[string]CertificationTypeDef
	verificationByID  map[string]VerificationTypeDef
}

// New builds a Catalogue from the supplied tables. Inputs are copied.
func New(equipment []EquipmentTypeDef, certifications []CertificationTypeDef, verifications []VerificationTypeDef) Catalogue {
	c := Catalogue{
		equipment:         append([]EquipmentTypeDef(nil), equipment...),
		certifications:    append([]CertificationTypeDef(nil), certifications...),
		verifications:     append([]VerificationTypeDef(nil), verifications...),
		equipmentByID:     make(map[string]EquipmentTypeDef, len(equipment)),
		certificationByID: make(map[string]CertificationTypeDef, len(certifications)),
		verificationByID:  make(map[string]VerificationTypeDef, len(verifications)),
	}
	for _, def := range c.equipment {
		c.equipmentByID[def.ID] = def
	}
	for _, def := range c.certifications {
		c.certificationByID[def.ID] = def
	}
	for _, def := range c.verifications {
		c.verificationByID[def.ID] = def
	}
	return c
}

// EquipmentType looks up an equipment type definition by id.
func (c Catalogue) EquipmentType(id string) (EquipmentTypeDef, bool) {
	def, ok := c.equipmentByID[id]
	return def, ok
}

// CertificationType looks up a certification type definition by id.
func (c Catalogue) CertificationType(id string) (CertificationTypeDef, bool) {
	def, ok := c.certificationByID[id]
	return def, ok
}

// VerificationType looks up a verification type definition by id.
func (c Catalogue) VerificationType(id string) (VerificationTypeDef, bool) {
	def, ok := c.verificationByID[id]
	return def, ok
}

// EquipmentTypes returns a copy of the equipment table in catalogue order.
func (c Catalogue) EquipmentTypes() []EquipmentTypeDef {
	return append([]EquipmentTypeDef(nil), c.equipment...)
}

// CertificationTypes returns a copy of the certification table in catalogue order.
func (c Catalogue) CertificationTypes() []CertificationTypeDef {
	return append([]CertificationTypeDef(nil), c.certifications...)
}

// VerificationTypes returns a copy of the verification table in catalogue order.
func (c Catalogue) VerificationTypes() []VerificationTypeDef {
	return append([]VerificationTypeDef(nil), c.verifications...)
}

func months(n int) *int { return &n }
func years(n int) *int  { return &n }

// Default returns the built-in French workplace prevention catalogue.
func Default() Catalogue {
	return New(defaultEquipment(), defaultCertifications(), defaultVerifications())
}

func defaultEquipment() []EquipmentTypeDef {
	return []EquipmentTypeDef{
		{
			ID:                  EquipWaterExtinguisher,
			Label:               "Extincteur à eau pulvérisée",
			Category:            CategoryFireFighting,
			PeriodicityMonths:   months(12),
			MaxServiceLifeYears: years(20),
			Regulation:          "Code du travail R4227-28 à R4227-33",
			Notes:               "Un appareil de 6 litres minimum pour 200 m² de plancher, par niveau.",
		},
		{
			ID:                  EquipCO2Extinguisher,
			Label:               "Extincteur CO2",
			Category:            CategoryFireFighting,
			PeriodicityMonths:   months(12),
			MaxServiceLifeYears: years(20),
			Regulation:          "Code du travail R4227-29",
			Notes:               "Adapté aux feux d'origine électrique.",
		},
		{
			ID:                  EquipPowderExtinguisher,
			Label:               "Extincteur à poudre polyvalente",
			Category:            CategoryFireFighting,
			PeriodicityMonths:   months(12),
			MaxServiceLifeYears: years(20),
			Regulation:          "Code du travail R4227-29",
			Notes:               "Feux de liquides inflammables et de gaz.",
		},
		{
			ID:                EquipDefibrillator,
			Label:             "Défibrillateur automatisé externe (DAE)",
			Category:          CategoryFirstAid,
			PeriodicityMonths: months(12),
			Regulation:        "Code de la santé publique R5212-25",
			Notes:             "Vérification des électrodes et de la batterie.",
		},
		{
			ID:                EquipFirstAidKit,
			Label:             "Trousse de premiers secours",
			Category:          CategoryFirstAid,
			PeriodicityMonths: months(6),
			Regulation:        "Code du travail R4224-14",
			Notes:             "Contenu adapté aux risques, contrôle des péremptions.",
		},
		{
			ID:                EquipEyewashStation,
			Label:             "Rince-œil / douche de sécurité",
			Category:          CategoryFirstAid,
			PeriodicityMonths: months(6),
			Regulation:        "Code du travail R4224-14",
			Notes:             "Obligatoire en présence de produits corrosifs.",
		},
		{
			ID:                  EquipFireBlanket,
			Label:               "Couverture anti-feu",
			Category:            CategoryFireFighting,
			MaxServiceLifeYears: years(7),
			Regulation:          "Norme EN 1869",
		},
		{
			ID:                EquipFireAlarm,
			Label:             "Système d'alarme incendie",
			Category:          CategoryEvacuation,
			PeriodicityMonths: months(6),
			Regulation:        "Code du travail R4227-34 à R4227-36",
			Notes:             "Signal audible en tout point du bâtiment.",
		},
		{
			ID:                EquipEmergencyLighting,
			Label:             "Éclairage de sécurité",
			Category:          CategoryEvacuation,
			PeriodicityMonths: months(12),
			Regulation:        "Code du travail R4227-14",
		},
		{
			ID:         EquipEvacuationPlan,
			Label:      "Plan d'évacuation",
			Category:   CategoryEvacuation,
			Regulation: "Norme NF X 08-070",
			Notes:      "Affiché à chaque niveau et près des accès.",
		},
	}
}

func defaultCertifications() []CertificationTypeDef {
	return []CertificationTypeDef{
		{
			ID:                 CertFirstAid,
			Code:               "SST",
			Label:              "Sauveteur secouriste du travail",
			ValidityMonths:     24,
			DeliverableInHouse: true,
			Regulation:         "Code du travail R4224-15",
			Rationale:          "Personnel formé aux premiers secours dans chaque atelier où sont accomplis des travaux dangereux.",
		},
		{
			ID:                 CertFireResponse,
			Code:               "EPI",
			Label:              "Équipier de première intervention incendie",
			ValidityMonths:     12,
			DeliverableInHouse: true,
			Regulation:         "Code du travail R4227-28",
			Rationale:          "Personnel capable de manipuler les moyens de première intervention.",
		},
		{
			ID:                 CertEvacuationDrill,
			Code:               "EVAC",
			Label:              "Participation à l'exercice d'évacuation",
			ValidityMonths:     6,
			DeliverableInHouse: true,
			Regulation:         "Code du travail R4227-39",
			Rationale:          "Essais et exercices semestriels pour l'ensemble du personnel.",
		},
		{
			ID:             CertElectrical,
			Code:           "HAB-ELEC",
			Label:          "Habilitation électrique",
			ValidityMonths: 36,
			Regulation:     "Code du travail R4544-9, norme NF C 18-510",
			Rationale:      "Obligatoire pour toute opération sur ou à proximité d'installations électriques.",
		},
		{
			ID:             CertForklift,
			Code:           "CACES R489",
			Label:          "Conduite de chariots automoteurs",
			ValidityMonths: 60,
			Regulation:     "Code du travail R4323-55",
			Rationale:      "Autorisation de conduite exigée pour les chariots de manutention.",
		},
		{
			ID:             CertConstruction,
			Code:           "CACES R482",
			Label:          "Conduite d'engins de chantier",
			ValidityMonths: 120,
			Regulation:     "Code du travail R4323-55",
			Rationale:      "Autorisation de conduite exigée pour les engins de chantier.",
		},
		{
			ID:             CertAerialPlatform,
			Code:           "CACES R486",
			Label:          "Conduite de plateformes élévatrices (PEMP)",
			ValidityMonths: 60,
			Regulation:     "Code du travail R4323-55",
			Rationale:      "Autorisation de conduite exigée pour les nacelles élévatrices.",
		},
		{
			ID:             CertWorkAtHeight,
			Code:           "HAUTEUR",
			Label:          "Travail en hauteur et port du harnais",
			ValidityMonths: 36,
			Regulation:     "Code du travail R4323-58 à R4323-90",
			Rationale:      "Formation au travail en hauteur et aux équipements de protection contre les chutes.",
		},
		{
			ID:                 CertManualHandling,
			Code:               "GP",
			Label:              "Gestes et postures / PRAP",
			ValidityMonths:     24,
			DeliverableInHouse: true,
			Regulation:         "Code du travail R4541-8",
			Rationale:          "Formation recommandée en présence de manutentions manuelles répétées.",
		},
	}
}

func defaultVerifications() []VerificationTypeDef {
	return []VerificationTypeDef{
		{
			ID:                "exercice_evacuation",
			Label:             "Exercice d'évacuation",
			PeriodicityMonths: 6,
			Regulation:        "Code du travail R4227-39",
		},
		{
			ID:                "verif_extincteurs",
			Label:             "Vérification annuelle des extincteurs",
			PeriodicityMonths: 12,
			Regulation:        "Code du travail R4227-39, norme NF S 61-919",
		},
		{
			ID:                "verif_electrique",
			Label:             "Vérification des installations électriques",
			PeriodicityMonths: 12,
			Regulation:        "Code du travail R4226-14",
		},
		{
			ID:                "verif_alarme",
			Label:             "Essai du système d'alarme",
			PeriodicityMonths: 6,
			Regulation:        "Code du travail R4227-36",
		},
		{
			ID:                "verif_eclairage",
			Label:             "Contrôle de l'éclairage de sécurité",
			PeriodicityMonths: 12,
			Regulation:        "Arrêté du 14 décembre 2011",
		},
	}
}
