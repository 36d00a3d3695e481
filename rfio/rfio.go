// Package rfio implements the forest's on-disk binary format: a versioned,
// explicitly little-endian envelope written with encoding/binary rather
// than encoding/gob, so the field order and enum encodings are pinned byte
// for byte and the file stays inspectable outside a Go process.
package rfio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/cran/literanger/forest"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/tree"
)

const (
	magic         = "LRFR"
	formatVersion = uint32(1)

	familyClassification = "classification"
	familyRegression     = "regression"
)

// wireSplitRuleName returns the canonical on-disk split-rule string. LogRank
// carries a different name per family (the same enum value means variance
// reduction for regression and Gini reduction for classification); every
// other rule's name is shared across families.
func wireSplitRuleName(rule tree.SplitRule, family string) string {
	if rule == tree.LogRank {
		if family == familyRegression {
			return "variance"
		}
		return "gini"
	}
	return rule.String()
}

func splitRuleFromWireName(name string) (tree.SplitRule, error) {
	switch name {
	case "gini", "variance", "logrank":
		return tree.LogRank, nil
	case "extratrees":
		return tree.ExtraTrees, nil
	case "beta":
		return tree.Beta, nil
	case "maxstat":
		return tree.MaxStat, nil
	case "hellinger":
		return tree.Hellinger, nil
	default:
		return 0, rferrors.Serialization("unrecognized split_rule wire name %q", name)
	}
}

type writer struct {
	w   *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer { return &writer{w: bufio.NewWriter(w)} }

func (bw *writer) bytes(b []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(b)
}

func (bw *writer) u8(v byte) { bw.bytes([]byte{v}) }
func (bw *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	bw.bytes(b[:])
}
func (bw *writer) i64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	bw.bytes(b[:])
}
func (bw *writer) f64(v float64) { bw.i64(int64(math.Float64bits(v))) }

func (bw *writer) str(s string) {
	bw.u32(uint32(len(s)))
	bw.bytes([]byte(s))
}

func (bw *writer) ints(vs []int) {
	bw.u32(uint32(len(vs)))
	for _, v := range vs {
		bw.i64(int64(v))
	}
}

func (bw *writer) float64s(vs []float64) {
	bw.u32(uint32(len(vs)))
	for _, v := range vs {
		bw.f64(v)
	}
}

func (bw *writer) bools(vs []bool) {
	bw.u32(uint32(len(vs)))
	for _, v := range vs {
		if v {
			bw.u8(1)
		} else {
			bw.u8(0)
		}
	}
}

func (bw *writer) strs(vs []string) {
	bw.u32(uint32(len(vs)))
	for _, v := range vs {
		bw.str(v)
	}
}

func (bw *writer) flush() error {
	if bw.err != nil {
		return bw.err
	}
	return bw.w.Flush()
}

type reader struct {
	r   io.Reader
	err error
}

func newReader(r io.Reader) *reader { return &reader{r: r} }

func (br *reader) bytes(n int) []byte {
	if br.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, br.err = io.ReadFull(br.r, b)
	return b
}

func (br *reader) u8() byte {
	b := br.bytes(1)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func (br *reader) u32() uint32 {
	b := br.bytes(4)
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (br *reader) i64() int64 {
	b := br.bytes(8)
	if len(b) < 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (br *reader) f64() float64 { return math.Float64frombits(uint64(br.i64())) }

func (br *reader) str() string {
	n := br.u32()
	return string(br.bytes(int(n)))
}

func (br *reader) ints() []int {
	n := br.u32()
	out := make([]int, n)
	for i := range out {
		out[i] = int(br.i64())
	}
	return out
}

func (br *reader) float64s() []float64 {
	n := br.u32()
	out := make([]float64, n)
	for i := range out {
		out[i] = br.f64()
	}
	return out
}

func (br *reader) bools() []bool {
	n := br.u32()
	out := make([]bool, n)
	for i := range out {
		out[i] = br.u8() != 0
	}
	return out
}

func (br *reader) strs() []string {
	n := br.u32()
	out := make([]string, n)
	for i := range out {
		out[i] = br.str()
	}
	return out
}

// NewRunID mints a run identifier for a fresh planting job; persisted
// in the envelope so a serialized forest carries provenance of which
// training run produced it.
func NewRunID() uuid.UUID { return uuid.New() }

// WriteClassification serializes a classification forest to w, along with
// the predictor layout (NPredictor, IsOrdered) needed to reconstruct each
// tree's Base on read.
func WriteClassification(w io.Writer, f *forest.Classification, nPredictor int, isOrdered []bool, runID uuid.UUID) error {
	bw := newWriter(w)
	bw.bytes([]byte(magic))
	bw.u32(formatVersion)
	bw.bytes(runIDBytes(runID))
	bw.str(familyClassification)
	bw.u8(boolByte(f.SaveMemory))
	bw.u32(uint32(nPredictor))
	bw.bools(isOrdered)
	bw.strs(f.PredictorNames)

	writeParams(bw, f.Params, familyClassification)

	bw.u32(uint32(f.NClass))
	bw.float64s(f.ResponseValues)
	bw.strs(f.ResponseLevels)
	bw.f64(f.OOBError)

	bw.u32(uint32(len(f.Trees)))
	for i, ct := range f.Trees {
		writeBase(bw, &ct.Base)
		bw.ints(f.OOBKeys[i])
		writeIntSliceMap(bw, ct.LeafKeys)
		writeIntMap(bw, ct.LeafMostFrequent)
	}
	return bw.flush()
}

// WriteRegression serializes a regression forest to w, along with the
// predictor layout needed to reconstruct each tree's Base on read.
func WriteRegression(w io.Writer, f *forest.Regression, nPredictor int, isOrdered []bool, runID uuid.UUID) error {
	bw := newWriter(w)
	bw.bytes([]byte(magic))
	bw.u32(formatVersion)
	bw.bytes(runIDBytes(runID))
	bw.str(familyRegression)
	bw.u8(boolByte(f.SaveMemory))
	bw.u32(uint32(nPredictor))
	bw.bools(isOrdered)
	bw.strs(f.PredictorNames)

	writeParams(bw, f.Params, familyRegression)
	bw.f64(f.OOBError)

	bw.u32(uint32(len(f.Trees)))
	for i, rt := range f.Trees {
		writeBase(bw, &rt.Base)
		bw.ints(f.OOBKeys[i])
		writeFloatSliceMap(bw, rt.LeafValues)
		writeFloatMap(bw, rt.LeafMean)
	}
	return bw.flush()
}

// peekFamily parses the envelope header, leaving the reader positioned at
// the family-specific body.
func peekFamily(br *reader) (string, bool, int, []bool, []string, error) {
	if string(br.bytes(len(magic))) != magic {
		return "", false, 0, nil, nil, rferrors.Serialization("not a literanger forest file (bad magic)")
	}
	version := br.u32()
	if version != formatVersion {
		return "", false, 0, nil, nil, rferrors.Serialization("unsupported format version %d", version)
	}
	br.bytes(16) // run id, not needed by the caller here
	family := br.str()
	saveMemory := br.u8() != 0
	nPredictor := int(br.u32())
	isOrdered := br.bools()
	predictorNames := br.strs()
	if br.err != nil {
		return "", false, 0, nil, nil, rferrors.Serialization("truncated forest header: %v", br.err)
	}
	return family, saveMemory, nPredictor, isOrdered, predictorNames, nil
}

// ReadClassification decodes a classification forest previously written by
// WriteClassification.
func ReadClassification(r io.Reader) (*forest.Classification, error) {
	br := newReader(r)
	family, saveMemory, nPredictor, isOrdered, predictorNames, err := peekFamily(br)
	if err != nil {
		return nil, err
	}
	if family != familyClassification {
		return nil, rferrors.Serialization("forest file holds a regression forest, not classification")
	}

	params, err := readParams(br, family)
	if err != nil {
		return nil, err
	}

	nClass := int(br.u32())
	responseValues := br.float64s()
	responseLevels := br.strs()
	oobError := br.f64()

	f := forest.NewClassification(params, nClass, responseValues, predictorNames)
	f.ResponseLevels = responseLevels
	f.OOBError = oobError
	f.SaveMemory = saveMemory

	nTree := int(br.u32())
	f.Trees = make([]*tree.Classification, nTree)
	f.OOBKeys = make([][]int, nTree)
	for i := range f.Trees {
		ct := tree.NewClassification(nPredictor, isOrdered, nClass, params.ResponseWeights, saveMemory)
		readBase(br, &ct.Base)
		f.OOBKeys[i] = br.ints()
		ct.LeafKeys = readIntSliceMap(br)
		ct.LeafMostFrequent = readIntMap(br)
		f.Trees[i] = ct
	}
	if br.err != nil {
		return nil, rferrors.Serialization("truncated classification forest body: %v", br.err)
	}
	return f, nil
}

// ReadRegression decodes a regression forest previously written by
// WriteRegression.
func ReadRegression(r io.Reader) (*forest.Regression, error) {
	br := newReader(r)
	family, saveMemory, nPredictor, isOrdered, predictorNames, err := peekFamily(br)
	if err != nil {
		return nil, err
	}
	if family != familyRegression {
		return nil, rferrors.Serialization("forest file holds a classification forest, not regression")
	}

	params, err := readParams(br, family)
	if err != nil {
		return nil, err
	}

	oobError := br.f64()
	f := forest.NewRegression(params, predictorNames)
	f.OOBError = oobError
	f.SaveMemory = saveMemory

	nTree := int(br.u32())
	f.Trees = make([]*tree.Regression, nTree)
	f.OOBKeys = make([][]int, nTree)
	for i := range f.Trees {
		rt := tree.NewRegression(nPredictor, isOrdered, saveMemory)
		readBase(br, &rt.Base)
		f.OOBKeys[i] = br.ints()
		rt.LeafValues = readFloatSliceMap(br)
		rt.LeafMean = readFloatMap(br)
		f.Trees[i] = rt
	}
	if br.err != nil {
		return nil, rferrors.Serialization("truncated regression forest body: %v", br.err)
	}
	return f, nil
}

func readParams(br *reader, family string) (tree.TrainingParameters, error) {
	var p tree.TrainingParameters
	p.Replace = br.u8() != 0
	p.SampleFraction = br.float64s()
	p.NTry = int(br.u32())
	p.DrawAlwaysPredictorKeys = br.ints()
	p.DrawPredictorWeights = br.float64s()
	p.ResponseWeights = br.float64s()
	ruleName := br.str()
	rule, err := splitRuleFromWireName(ruleName)
	if err != nil {
		return p, err
	}
	p.SplitRule = rule
	p.MinMetricDecrease = br.f64()
	p.MaxDepth = int(br.u32())
	p.MinSplitNSample = int(br.u32())
	p.MinLeafNSample = int(br.u32())
	p.NRandomSplit = int(br.u32())
	p.MinProp = br.f64()
	p.UnorderedStrategy = tree.UnorderedStrategy(br.u8())
	return p, nil
}

func readBase(br *reader, b *tree.Base) {
	_ = br.u32() // node count, implied by the slice lengths below
	b.SplitKeys = br.ints()
	b.SplitValues = br.float64s()
	b.LeftChildren = br.ints()
	b.RightChildren = br.ints()
}

func readIntSliceMap(br *reader) map[int][]int {
	n := br.u32()
	m := make(map[int][]int, n)
	for i := uint32(0); i < n; i++ {
		k := int(br.i64())
		m[k] = br.ints()
	}
	return m
}

func readIntMap(br *reader) map[int]int {
	n := br.u32()
	m := make(map[int]int, n)
	for i := uint32(0); i < n; i++ {
		k := int(br.i64())
		m[k] = int(br.i64())
	}
	return m
}

func readFloatSliceMap(br *reader) map[int][]float64 {
	n := br.u32()
	m := make(map[int][]float64, n)
	for i := uint32(0); i < n; i++ {
		k := int(br.i64())
		m[k] = br.float64s()
	}
	return m
}

func readFloatMap(br *reader) map[int]float64 {
	n := br.u32()
	m := make(map[int]float64, n)
	for i := uint32(0); i < n; i++ {
		k := int(br.i64())
		m[k] = br.f64()
	}
	return m
}

func writeParams(bw *writer, p tree.TrainingParameters, family string) {
	bw.u8(boolByte(p.Replace))
	bw.float64s(p.SampleFraction)
	bw.u32(uint32(p.NTry))
	bw.ints(p.DrawAlwaysPredictorKeys)
	bw.float64s(p.DrawPredictorWeights)
	bw.float64s(p.ResponseWeights)
	bw.str(wireSplitRuleName(p.SplitRule, family))
	bw.f64(p.MinMetricDecrease)
	bw.u32(uint32(p.MaxDepth))
	bw.u32(uint32(p.MinSplitNSample))
	bw.u32(uint32(p.MinLeafNSample))
	bw.u32(uint32(p.NRandomSplit))
	bw.f64(p.MinProp)
	bw.u8(byte(p.UnorderedStrategy))
}

func writeBase(bw *writer, b *tree.Base) {
	bw.u32(uint32(b.NNode()))
	bw.ints(b.SplitKeys)
	bw.float64s(b.SplitValues)
	bw.ints(b.LeftChildren)
	bw.ints(b.RightChildren)
}

// sortedKeys fixes the map entry order on the wire, so serializing the same
// forest twice produces identical bytes.
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func writeIntSliceMap(bw *writer, m map[int][]int) {
	bw.u32(uint32(len(m)))
	for _, k := range sortedKeys(m) {
		bw.i64(int64(k))
		bw.ints(m[k])
	}
}

func writeIntMap(bw *writer, m map[int]int) {
	bw.u32(uint32(len(m)))
	for _, k := range sortedKeys(m) {
		bw.i64(int64(k))
		bw.i64(int64(m[k]))
	}
}

func writeFloatSliceMap(bw *writer, m map[int][]float64) {
	bw.u32(uint32(len(m)))
	for _, k := range sortedKeys(m) {
		bw.i64(int64(k))
		bw.float64s(m[k])
	}
}

func writeFloatMap(bw *writer, m map[int]float64) {
	bw.u32(uint32(len(m)))
	for _, k := range sortedKeys(m) {
		bw.i64(int64(k))
		bw.f64(m[k])
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func runIDBytes(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}
