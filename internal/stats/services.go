package stats

import "strings"

// AggOptions controls how raw market labels collapse into service
// groupings.
type AggOptions struct {
	// AggEnergy lumps every energy stream into a single "energy" bucket.
	AggEnergy bool
	// AggRTEnergy lumps fmm, rtd and ruc energy into "rt_energy",
	// leaving ifm energy as "da_energy". Ignored when AggEnergy is set.
	AggRTEnergy bool
	// AggAS collapses all ancillary services into "as".
	AggAS bool
}

// DefaultAggOptions matches the usual reporting groupings: real-time
// energy lumped together, ancillary services collapsed.
func DefaultAggOptions() AggOptions {
	return AggOptions{AggRTEnergy: true, AggAS: true}
}

// AggregateServices maps raw market labels of the form "<market>
// <service>" (e.g. "ifm energy", "fmm ru") onto service groupings.
func AggregateServices(labels []string, opts AggOptions) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		market, service, _ := strings.Cut(label, " ")
		isEnergy := service == "energy"

		switch {
		case isEnergy && opts.AggEnergy:
			out[i] = "energy"
		case isEnergy && opts.AggRTEnergy && market != "ifm":
			out[i] = "rt_energy"
		case isEnergy && opts.AggRTEnergy:
			out[i] = "da_energy"
		case isEnergy:
			out[i] = market + "_energy"
		case opts.AggAS:
			out[i] = "as"
		default:
			out[i] = service
		}
	}
	return out
}
