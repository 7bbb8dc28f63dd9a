package detect

import "amuguard/internal/model"

// ComputePeerGroups buckets farms by (species, herd-size tier) and averages
// their usage counts over the reference window. Farms missing species or
// herd size cannot be peer-compared and are left out. Groups with a single
// member produce no stat: a lone farm has no peers to compare against.
//
// The result is derived per run and shared read-only across farms; it is
// never persisted.
func ComputePeerGroups(farms []model.Farm, usageByFarm map[string]int) map[model.PeerGroupKey]model.PeerGroupStat {
	totals := make(map[model.PeerGroupKey]int)
	counts := make(map[model.PeerGroupKey]int)
	for _, farm := range farms {
		if farm.Species == "" || farm.HerdSize <= 0 {
			continue
		}
		key := model.PeerGroupKey{
			Species: farm.Species,
			Bucket:  model.BucketForHerdSize(farm.HerdSize),
		}
		totals[key] += usageByFarm[farm.ID]
		counts[key]++
	}
	out := make(map[model.PeerGroupKey]model.PeerGroupStat, len(counts))
	for key, n := range counts {
		if n < 2 {
			continue
		}
		out[key] = model.PeerGroupStat{
			AverageUsage: float64(totals[key]) / float64(n),
			FarmCount:    n,
		}
	}
	return out
}
