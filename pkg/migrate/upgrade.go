package migrate

import rased "github.com/goliatone/go-rased"

var behaviorLevels = map[string]string{
	"Très bien":   "Très satisfaisant",
	"Bien":        "Satisfaisant",
	"Fragile":     "Problématique",
	"Préoccupant": "Problématique",
}

var relationalLevels = map[string]string{
	"Très bien":   "Excellente",
	"Bien":        "Bonne",
	"Fragile":     "Fragile",
	"Préoccupant": "Problématique",
}

var proficiencyLevels = map[string]string{
	"Acquis":                 "Très satisfaisant",
	"En cours d'acquisition": "Satisfaisant",
	"Fragile":                "Problématique",
	"Non acquis":             "Problématique",
}

// itemAliases renames legacy labels that have a catalog counterpart.
var itemAliases = map[string]string{
	"Attention en classe": "Attention / concentration",
}

// UpgradeEvaluations rewrites legacy evaluation rows on the current scales.
// Rows keep their order; legacy labels without a catalog counterpart keep
// their name. The second result is false when rec was already current.
func UpgradeEvaluations(rec rased.StudentRecord) (rased.StudentRecord, bool) {
	if rec.Behavior.Generation != rased.GenerationLegacy && rec.Learning.Generation != rased.GenerationLegacy {
		return rec, false
	}
	out := rec.Clone()
	out.Behavior = upgradeBehavior(rec.Behavior)
	out.Learning = upgradeLearning(rec.Learning)
	out.Meta.EvaluationSchema = rased.GenerationCurrent
	return out, true
}

// UpgradeSession upgrades every legacy record and reports how many changed.
func UpgradeSession(session rased.Session) (rased.Session, int) {
	out := session.Clone()
	changed := 0
	for i := range out.Students {
		upgraded, ok := UpgradeEvaluations(out.Students[i])
		if ok {
			out.Students[i] = upgraded
			changed++
		}
	}
	return out, changed
}

func upgradeBehavior(in rased.Evaluations) rased.Evaluations {
	if in.Generation != rased.GenerationLegacy {
		return in.Clone()
	}
	out := rased.NewEvaluations()
	for _, row := range in.Legacy {
		item := alias(row.Key())
		assessment := rased.Assessment{Item: item, Observation: row.Note}
		if isRelational(item) {
			assessment.Quality = relationalLevels[row.Level]
		} else {
			assessment.Evaluation = behaviorLevels[row.Level]
		}
		out.Current = append(out.Current, assessment)
	}
	return out
}

func upgradeLearning(in rased.Evaluations) rased.Evaluations {
	if in.Generation != rased.GenerationLegacy {
		return in.Clone()
	}
	out := rased.NewEvaluations()
	for _, row := range in.Legacy {
		out.Current = append(out.Current, rased.Assessment{
			Item:        alias(row.Key()),
			Evaluation:  proficiencyLevels[row.Level],
			Observation: row.Note,
		})
	}
	return out
}

func alias(item string) string {
	if renamed, ok := itemAliases[item]; ok {
		return renamed
	}
	return item
}

func isRelational(item string) bool {
	for _, candidate := range rased.RelationalItems {
		if candidate == item {
			return true
		}
	}
	return false
}
