package export

import (
	"fmt"
	"math"
	"os"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"h2scenarios/internal/dataset"
	"h2scenarios/internal/frame"
)

// WriteNetCDF writes ds as a classic NetCDF file at path.
//
// Every dimension gets a coordinate variable of the same name. Boolean
// labels are stored as int8 with a dtype="bool" attribute; integer labels as
// int32 (int64 if they do not fit). Data variables are float64 with a NaN
// _FillValue. Auxiliary coordinates are char arrays along their dimension.
//
// The file is written to a temporary name and renamed into place, so a
// failed run leaves no partial output.
func WriteNetCDF(path string, ds *dataset.Dataset, globals map[string]string) error {
	tmp := path + ".tmp"
	cw, err := cdf.OpenWriter(tmp)
	if err != nil {
		return fmt.Errorf("netcdf: create %s: %w", path, err)
	}
	if err := addAll(cw, ds, globals); err != nil {
		_ = cw.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := cw.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("netcdf: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("netcdf: %w", err)
	}
	return nil
}

func addAll(cw *cdf.CDFWriter, ds *dataset.Dataset, globals map[string]string) error {
	if len(globals) > 0 {
		attrs, err := stringAttrs(globals)
		if err != nil {
			return err
		}
		if err := cw.AddGlobalAttrs(attrs); err != nil {
			return fmt.Errorf("netcdf: global attributes: %w", err)
		}
	}

	// A header-only category leaves its dimensions empty; every variable on
	// them has zero cells, so they are left out.
	empty := map[string]bool{}
	for _, d := range ds.Dims {
		if len(d.Labels) == 0 {
			empty[d.Name] = true
			continue
		}
		vals, attrs, err := coordValues(d)
		if err != nil {
			return err
		}
		if err := cw.AddVar(d.Name, api.Variable{Values: vals, Dimensions: []string{d.Name}, Attributes: attrs}); err != nil {
			return fmt.Errorf("netcdf: coordinate %q: %w", d.Name, err)
		}
	}

	for _, a := range ds.Aux {
		if empty[a.Dim] || !anyNonEmpty(a.Values) {
			// char arrays need at least one byte per label.
			continue
		}
		if err := cw.AddVar(a.Name, api.Variable{Values: a.Values, Dimensions: []string{a.Dim}}); err != nil {
			return fmt.Errorf("netcdf: coordinate %q: %w", a.Name, err)
		}
	}

	for _, v := range ds.Vars {
		if onEmptyDim(v.Dims, empty) {
			continue
		}
		attrs, err := util.NewOrderedMap(
			[]string{"_FillValue", "category"},
			map[string]interface{}{"_FillValue": math.NaN(), "category": v.Category},
		)
		if err != nil {
			return err
		}
		vr := api.Variable{Values: nest(v.Values, v.Shape), Dimensions: v.Dims, Attributes: attrs}
		if err := cw.AddVar(v.Name, vr); err != nil {
			return fmt.Errorf("netcdf: variable %q: %w", v.Name, err)
		}
	}
	return nil
}

func onEmptyDim(dims []string, empty map[string]bool) bool {
	for _, d := range dims {
		if empty[d] {
			return true
		}
	}
	return false
}

func coordValues(d dataset.Dim) (interface{}, api.AttributeMap, error) {
	switch d.Kind {
	case frame.KindString:
		out := make([]string, len(d.Labels))
		for i, l := range d.Labels {
			out[i] = fmt.Sprint(l)
		}
		return out, nil, nil

	case frame.KindBool:
		out := make([]int8, len(d.Labels))
		for i, l := range d.Labels {
			if b, _ := l.(bool); b {
				out[i] = 1
			}
		}
		attrs, err := stringAttrs(map[string]string{"dtype": "bool"})
		return out, attrs, err

	case frame.KindInt:
		wide := make([]int64, len(d.Labels))
		fits := true
		for i, l := range d.Labels {
			x, ok := frame.ToFloat(l)
			if !ok {
				return nil, nil, fmt.Errorf("netcdf: dimension %q: label %v is not an integer", d.Name, l)
			}
			wide[i] = int64(x)
			if wide[i] > math.MaxInt32 || wide[i] < math.MinInt32 {
				fits = false
			}
		}
		if !fits {
			return wide, nil, nil
		}
		out := make([]int32, len(wide))
		for i, x := range wide {
			out[i] = int32(x)
		}
		return out, nil, nil

	default:
		out := make([]float64, len(d.Labels))
		for i, l := range d.Labels {
			out[i], _ = frame.ToFloat(l)
		}
		return out, nil, nil
	}
}

// nest turns a row-major flat slice into nested slices of the given shape
// ([]float64, [][]float64, ...), which is what the writer expects.
func nest(flat []float64, shape []int) interface{} {
	if len(shape) <= 1 {
		return flat
	}
	t := reflect.TypeOf(flat)
	for range shape[1:] {
		t = reflect.SliceOf(t)
	}
	return build(flat, shape, t).Interface()
}

func build(flat []float64, shape []int, t reflect.Type) reflect.Value {
	if len(shape) == 1 {
		return reflect.ValueOf(flat)
	}
	stride := len(flat) / shape[0]
	out := reflect.MakeSlice(t, shape[0], shape[0])
	for i := 0; i < shape[0]; i++ {
		out.Index(i).Set(build(flat[i*stride:(i+1)*stride], shape[1:], t.Elem()))
	}
	return out
}

func stringAttrs(m map[string]string) (*util.OrderedMap, error) {
	keys := make([]string, 0, len(m))
	vals := make(map[string]interface{}, len(m))
	for _, k := range sortedKeys(m) {
		keys = append(keys, k)
		vals[k] = m[k]
	}
	return util.NewOrderedMap(keys, vals)
}

func anyNonEmpty(ss []string) bool {
	for _, s := range ss {
		if s != "" {
			return true
		}
	}
	return false
}
