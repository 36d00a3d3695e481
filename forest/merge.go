package forest

import (
	"math"

	"github.com/cran/literanger/rferrors"
)

// checkCompatiblePredictors verifies x and y agree on predictor count and,
// after mapping y's columns onto x's through predictorKeyMapY, on
// orderedness. Pass a nil map when the two forests already share one
// predictor key space.
func checkCompatiblePredictors(xNPredictor, yNPredictor int, xOrdered, yOrdered func(int) bool, predictorKeyMapY map[int]int) error {
	if xNPredictor != yNPredictor {
		return rferrors.InvalidArgument("cannot merge forests with different predictor counts (%d vs %d)", xNPredictor, yNPredictor)
	}
	for yCol := 0; yCol < yNPredictor; yCol++ {
		xCol := yCol
		if predictorKeyMapY != nil {
			mapped, ok := predictorKeyMapY[yCol]
			if !ok {
				return rferrors.InvalidArgument("predictor_key_map has no entry for y column %d", yCol)
			}
			xCol = mapped
		}
		if xOrdered(xCol) != yOrdered(yCol) {
			return rferrors.InvalidArgument("predictor %d is ordered in one forest and unordered in the other", yCol)
		}
	}
	return nil
}

// buildResponseMap maps each of y's response values onto x's matching
// response key. The mapping must be injective onto x's class set; every y
// response value must have a match in x.
func buildResponseMap(xValues, yValues []float64) (map[int]int, error) {
	pos := make(map[float64]int, len(xValues))
	for i, v := range xValues {
		pos[v] = i
	}
	m := make(map[int]int, len(yValues))
	seen := make(map[int]bool, len(xValues))
	for yKey, v := range yValues {
		xKey, ok := pos[v]
		if !ok {
			return nil, rferrors.Domain("response value %v present in y but not in x", v)
		}
		if seen[xKey] {
			return nil, rferrors.Domain("response map is not injective: multiple y classes map to x class %d", xKey)
		}
		seen[xKey] = true
		m[yKey] = xKey
	}
	return m, nil
}

// BuildPredictorMap maps y's predictor columns onto x's by matching names,
// for MergeClassification/MergeRegression's predictorKeyMapY argument when
// the two forests were trained with differently ordered predictor columns.
func BuildPredictorMap(xNames, yNames []string) (map[int]int, error) {
	if len(xNames) == 0 || len(yNames) == 0 {
		return nil, rferrors.InvalidArgument("predictor_map requires both forests to carry predictor names")
	}
	pos := make(map[string]int, len(xNames))
	for i, name := range xNames {
		pos[name] = i
	}
	m := make(map[int]int, len(yNames))
	seen := make(map[int]bool, len(xNames))
	for yKey, name := range yNames {
		xKey, ok := pos[name]
		if !ok {
			return nil, rferrors.Domain("predictor %q present in y but not in x", name)
		}
		if seen[xKey] {
			return nil, rferrors.Domain("predictor_map is not injective: multiple y predictors map to x predictor %d", xKey)
		}
		seen[xKey] = true
		m[yKey] = xKey
	}
	return m, nil
}

// MergeClassification combines the trees of two classification forests
// grown over the same response levels into one. When the two forests were
// grown against different predictor column layouts, predictorKeyMapY
// remaps y's split keys into x's key space before the trees are folded in;
// pass nil when the predictor spaces already agree. The merged forest's
// response_values is x's; y's leaf keys are remapped onto it.
func MergeClassification(x, y *Classification, predictorKeyMapY map[int]int) (*Classification, error) {
	if x.NClass != y.NClass {
		return nil, rferrors.InvalidArgument("cannot merge forests with different class counts (%d vs %d)", x.NClass, y.NClass)
	}
	if len(x.Trees) > 0 && len(y.Trees) > 0 {
		if err := checkCompatiblePredictors(
			x.Trees[0].NPredictor(), y.Trees[0].NPredictor(),
			x.Trees[0].IsOrderedCol, y.Trees[0].IsOrderedCol,
			predictorKeyMapY); err != nil {
			return nil, err
		}
	}
	responseMap, err := buildResponseMap(x.ResponseValues, y.ResponseValues)
	if err != nil {
		return nil, err
	}

	merged := &Classification{
		Params:         x.Params,
		NClass:         x.NClass,
		ResponseValues: x.ResponseValues,
		ResponseLevels: x.ResponseLevels,
		PredictorNames: x.PredictorNames,
		SaveMemory:     x.SaveMemory,
		OOBError:       math.NaN(),
	}
	for _, ct := range x.Trees {
		merged.Trees = append(merged.Trees, ct.Clone())
	}

	for _, ct := range y.Trees {
		clone := ct.Clone()
		if predictorKeyMapY != nil {
			clone.TransformSplitKeys(predictorKeyMapY)
		}
		clone.TransformResponseKeys(responseMap)
		merged.Trees = append(merged.Trees, clone)
	}
	return merged, nil
}

// MergeRegression combines the trees of two regression forests into one,
// remapping y's split keys through predictorKeyMapY when the two forests
// disagree on predictor column layout.
func MergeRegression(x, y *Regression, predictorKeyMapY map[int]int) (*Regression, error) {
	if len(x.Trees) > 0 && len(y.Trees) > 0 {
		if err := checkCompatiblePredictors(
			x.Trees[0].NPredictor(), y.Trees[0].NPredictor(),
			x.Trees[0].IsOrderedCol, y.Trees[0].IsOrderedCol,
			predictorKeyMapY); err != nil {
			return nil, err
		}
	}

	merged := &Regression{Params: x.Params, PredictorNames: x.PredictorNames, SaveMemory: x.SaveMemory, OOBError: math.NaN()}
	for _, rt := range x.Trees {
		merged.Trees = append(merged.Trees, rt.Clone())
	}

	for _, rt := range y.Trees {
		clone := rt.Clone()
		if predictorKeyMapY != nil {
			clone.TransformSplitKeys(predictorKeyMapY)
		}
		merged.Trees = append(merged.Trees, clone)
	}
	return merged, nil
}
