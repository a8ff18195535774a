package prevention

import (
	"fmt"
	"math"
	"strings"

	"duerp.org/internal/catalogue"
)

// PriorityTier ranks an obligation for remediation planning.
type PriorityTier string

const (
	TierEssential   PriorityTier = "essential"
	TierStandard    PriorityTier = "standard"
	TierRecommended PriorityTier = "recommended"
)

// AlertSeverity is the weight of an advisory alert.
type AlertSeverity string

const (
	AlertWarning AlertSeverity = "warning"
	AlertInfo    AlertSeverity = "info"
)

// EquipmentObligation is a computed equipment requirement. Never persisted.
type EquipmentObligation struct {
	TypeID    string       `json:"type_id"`
	Quantity  int          `json:"quantity"`
	Mandatory bool         `json:"mandatory"`
	Rationale string       `json:"rationale"`
	Priority  PriorityTier `json:"priority"`
}

// TrainingObligation is a computed training requirement. A nil Headcount
// means "at least one person". Never persisted.
type TrainingObligation struct {
	TypeID    string       `json:"type_id"`
	Headcount *int         `json:"headcount,omitempty"`
	Mandatory bool         `json:"mandatory"`
	Rationale string       `json:"rationale"`
	Priority  PriorityTier `json:"priority"`
}

// Alert is an advisory message independent of any obligation.
type Alert struct {
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Facts are the contextual inputs the inference engine evaluates.
// Zero values mean "unknown" (workforce size, surface area), never zero-as-data.
type Facts struct {
	Risks         []Risk
	Units         []WorkUnit
	WorkforceSize int
	Sector        string
	SurfaceAreaM2 float64
}

// Evaluation is the full inference output. Obligation order follows rule
// evaluation order; callers must not rely on any other ordering.
type Evaluation struct {
	Equipment []EquipmentObligation `json:"equipment"`
	Training  []TrainingObligation  `json:"training"`
	Alerts    []Alert               `json:"alerts"`
}

// Keyword sets tested by substring containment against lower-cased hazard
// free text. Matching is case-insensitive but accent-sensitive: accented
// variants must be listed explicitly.
var (
	electricalKeywords   = []string{"électri", "electri", "haute tension", "basse tension"}
	chemicalKeywords     = []string{"chimique", "inflammable", "explosi", "solvant", "combustible"}
	corrosiveKeywords    = []string{"corrosif", "corrosi", "acide", "soude"}
	cardiacKeywords      = []string{"cardiaque", "cardio"}
	kitchenFireKeywords  = []string{"cuisine", "friteuse", "feu", "flamme"}
	fireRiskKeywords     = []string{"incendie", "feu", "flamme", "inflammable"}
	forkliftKeywords     = []string{"chariot", "cariste", "gerbeur", "transpalette"}
	constructionKeywords = []string{"engin", "pelleteuse", "tractopelle", "chantier"}
	platformKeywords     = []string{"nacelle", "pemp", "plateforme élévatrice", "plateforme elevatrice"}
	heightKeywords       = []string{"hauteur", "harnais", "échafaudage", "echafaudage", "toiture"}
	handlingKeywords     = []string{"manutention", "port de charge", "tms", "troubles musculo", "gestes répétitifs", "gestes repetitifs"}
)

// InferObligations derives equipment and training obligations plus advisory
// alerts from the dossier facts. Pure and deterministic: identical inputs
// produce structurally identical output, rationale strings included.
func InferObligations(cat catalogue.Catalogue, facts Facts) Evaluation {
	text := hazardText(facts.Risks)
	unitCount := len(facts.Units)
	workforce := facts.WorkforceSize

	var eval Evaluation

	// Equipment rules, in fixed order.
	waterQty := 1
	if facts.SurfaceAreaM2 > 0 {
		waterQty = maxInt(1, ceilDiv(facts.SurfaceAreaM2, 200))
	} else if unitCount > 1 {
		waterQty = unitCount
	}
	eval.Equipment = append(eval.Equipment, EquipmentObligation{
		TypeID:    catalogue.EquipWaterExtinguisher,
		Quantity:  waterQty,
		Mandatory: true,
		Rationale: "Un extincteur à eau pulvérisée de 6 litres minimum pour 200 m² de plancher.",
		Priority:  TierEssential,
	})

	if containsAny(text, electricalKeywords) {
		eval.Equipment = append(eval.Equipment, EquipmentObligation{
			TypeID:    catalogue.EquipCO2Extinguisher,
			Quantity:  maxInt(1, int(math.Ceil(float64(waterQty)/3))),
			Mandatory: true,
			Rationale: "Risque électrique identifié : extincteurs CO2 à proximité des installations.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, chemicalKeywords) {
		eval.Equipment = append(eval.Equipment, EquipmentObligation{
			TypeID:    catalogue.EquipPowderExtinguisher,
			Quantity:  1,
			Mandatory: true,
			Rationale: "Produits inflammables ou risque d'explosion : extincteur à poudre polyvalente.",
			Priority:  TierEssential,
		})
	}

	defibQty := 0
	if workforce >= 50 || containsAny(text, electricalKeywords) || containsAny(text, cardiacKeywords) {
		defibQty = 1
	}
	eval.Equipment = append(eval.Equipment, EquipmentObligation{
		TypeID:    catalogue.EquipDefibrillator,
		Quantity:  defibQty,
		Mandatory: false,
		Rationale: "Défibrillateur recommandé à partir de 50 salariés ou en présence de risque électrique.",
		Priority:  TierRecommended,
	})

	eval.Equipment = append(eval.Equipment, EquipmentObligation{
		TypeID:    catalogue.EquipFirstAidKit,
		Quantity:  maxInt(1, unitCount),
		Mandatory: true,
		Rationale: "Une trousse de premiers secours par unité de travail.",
		Priority:  TierEssential,
	})

	if containsAny(text, corrosiveKeywords) {
		eval.Equipment = append(eval.Equipment, EquipmentObligation{
			TypeID:    catalogue.EquipEyewashStation,
			Quantity:  1,
			Mandatory: true,
			Rationale: "Produits corrosifs identifiés : rince-œil ou douche de sécurité à proximité.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, kitchenFireKeywords) || strings.EqualFold(facts.Sector, "restauration") || strings.EqualFold(facts.Sector, "catering") {
		eval.Equipment = append(eval.Equipment, EquipmentObligation{
			TypeID:    catalogue.EquipFireBlanket,
			Quantity:  1,
			Mandatory: false,
			Rationale: "Couverture anti-feu recommandée en cuisine ou en présence de flammes nues.",
			Priority:  TierRecommended,
		})
	}

	if workforce >= 50 {
		eval.Equipment = append(eval.Equipment, EquipmentObligation{
			TypeID:    catalogue.EquipFireAlarm,
			Quantity:  1,
			Mandatory: true,
			Rationale: "Système d'alarme incendie obligatoire à partir de 50 personnes.",
			Priority:  TierEssential,
		})
	}

	eval.Equipment = append(eval.Equipment, EquipmentObligation{
		TypeID:    catalogue.EquipEmergencyLighting,
		Quantity:  1,
		Mandatory: true,
		Rationale: "Éclairage de sécurité obligatoire dans tous les établissements.",
		Priority:  TierEssential,
	})

	eval.Equipment = append(eval.Equipment, EquipmentObligation{
		TypeID:    catalogue.EquipEvacuationPlan,
		Quantity:  maxInt(1, unitCount),
		Mandatory: true,
		Rationale: "Plan d'évacuation affiché pour chaque unité de travail.",
		Priority:  TierEssential,
	})

	// Training rules, in fixed order.
	sstCount := maxInt(1, int(math.Ceil(float64(workforce)*0.15)))
	eval.Training = append(eval.Training, TrainingObligation{
		TypeID:    catalogue.CertFirstAid,
		Headcount: intPtr(sstCount),
		Mandatory: true,
		Rationale: "15 % de l'effectif formé SST, un minimum par atelier à risque.",
		Priority:  TierEssential,
	})

	epiCount := maxInt(1, int(math.Ceil(float64(workforce)*0.10)))
	eval.Training = append(eval.Training, TrainingObligation{
		TypeID:    catalogue.CertFireResponse,
		Headcount: intPtr(epiCount),
		Mandatory: true,
		Rationale: "Équipiers de première intervention : au moins un présent à tout moment.",
		Priority:  TierEssential,
	})

	drillCount := workforce
	if drillCount <= 0 {
		drillCount = 1
	}
	eval.Training = append(eval.Training, TrainingObligation{
		TypeID:    catalogue.CertEvacuationDrill,
		Headcount: intPtr(drillCount),
		Mandatory: true,
		Rationale: "Tout le personnel participe aux exercices d'évacuation semestriels.",
		Priority:  TierStandard,
	})

	if containsAny(text, electricalKeywords) {
		eval.Training = append(eval.Training, TrainingObligation{
			TypeID:    catalogue.CertElectrical,
			Mandatory: true,
			Rationale: "Risque électrique identifié : habilitation obligatoire pour les intervenants.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, forkliftKeywords) {
		eval.Training = append(eval.Training, TrainingObligation{
			TypeID:    catalogue.CertForklift,
			Mandatory: true,
			Rationale: "Conduite de chariots identifiée : CACES et autorisation de conduite exigés.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, constructionKeywords) {
		eval.Training = append(eval.Training, TrainingObligation{
			TypeID:    catalogue.CertConstruction,
			Mandatory: true,
			Rationale: "Engins de chantier identifiés : CACES et autorisation de conduite exigés.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, platformKeywords) || containsAny(text, heightKeywords) {
		eval.Training = append(eval.Training, TrainingObligation{
			TypeID:    catalogue.CertAerialPlatform,
			Mandatory: true,
			Rationale: "Plateformes élévatrices identifiées : CACES PEMP exigé.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, heightKeywords) {
		eval.Training = append(eval.Training, TrainingObligation{
			TypeID:    catalogue.CertWorkAtHeight,
			Mandatory: true,
			Rationale: "Travail en hauteur identifié : formation hauteur et harnais obligatoire.",
			Priority:  TierEssential,
		})
	}

	if containsAny(text, handlingKeywords) {
		eval.Training = append(eval.Training, TrainingObligation{
			TypeID:    catalogue.CertManualHandling,
			Mandatory: false,
			Rationale: "Manutentions manuelles identifiées : formation gestes et postures recommandée.",
			Priority:  TierRecommended,
		})
	}

	// Alerts, independent of obligations.
	if workforce >= 20 && !containsAny(text, fireRiskKeywords) {
		eval.Alerts = append(eval.Alerts, Alert{
			Severity: AlertWarning,
			Message:  "Aucun risque incendie recensé dans le document unique : vérifier que l'évaluation a bien été menée.",
		})
	}
	if workforce >= 11 {
		eval.Alerts = append(eval.Alerts, Alert{
			Severity: AlertInfo,
			Message:  fmt.Sprintf("Effectif de %d salariés : le CSE doit être consulté sur le document unique.", workforce),
		})
	}
	if workforce >= 200 {
		eval.Alerts = append(eval.Alerts, Alert{
			Severity: AlertWarning,
			Message:  "Effectif supérieur ou égal à 200 salariés : un local de soins (infirmerie) est obligatoire.",
		})
	}

	return eval
}

// hazardText flattens every risk's free-text hazard fields to lower case for
// keyword containment tests.
func hazardText(risks []Risk) []string {
	out := make([]string, 0, len(risks))
	for _, r := range risks {
		parts := []string{r.Hazard, r.Situation, r.CategoryCode}
		out = append(out, strings.ToLower(strings.Join(parts, " ")))
	}
	return out
}

func containsAny(texts []string, keywords []string) bool {
	for _, t := range texts {
		for _, kw := range keywords {
			if strings.Contains(t, kw) {
				return true
			}
		}
	}
	return false
}

func ceilDiv(value, per float64) int {
	return int(math.Ceil(value / per))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func intPtr(n int) *int { return &n }
