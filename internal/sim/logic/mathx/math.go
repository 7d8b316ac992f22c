package mathx

// Random stream ids. Every stochastic decision of a run draws from a stream
// derived from the run seed so that unrelated consumers never share state.
const (
	StreamDestinations = iota + 1
	StreamSpawn
	StreamMotion
	StreamDisease
	StreamContact
	StreamSeeding
)

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// SeedFor derives the seed of element i of a random stream.
func SeedFor(seed int64, stream, i int) int64 {
	return int64(Hash2(seed, stream, i) >> 1)
}
