package geo

import "strings"

// Standard geohash base32 alphabet (no a, i, l, o).
const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// DefaultGeohashPrecision (5 characters) yields roughly 5 km cells, the
// granularity the broadcast fabric partitions on.
const DefaultGeohashPrecision = 5

// GeohashEncode encodes a lat/lng to a geohash string of the given precision.
func GeohashEncode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = DefaultGeohashPrecision
	}

	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	bit := 0
	ch := 0
	even := true // even bits bisect longitude

	for sb.Len() < precision {
		if even {
			mid := (lngMin + lngMax) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				lngMin = mid
			} else {
				lngMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				latMin = mid
			} else {
				latMax = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			sb.WriteByte(geohashBase32[ch])
			bit = 0
			ch = 0
		}
	}
	return sb.String()
}

// GeohashDecode returns the center point of a geohash cell.
func GeohashDecode(hash string) (lat, lng float64) {
	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0
	even := true

	for _, c := range hash {
		idx := strings.IndexRune(geohashBase32, c)
		if idx < 0 {
			break
		}
		for bit := 4; bit >= 0; bit-- {
			set := idx&(1<<bit) != 0
			if even {
				mid := (lngMin + lngMax) / 2
				if set {
					lngMin = mid
				} else {
					lngMax = mid
				}
			} else {
				mid := (latMin + latMax) / 2
				if set {
					latMin = mid
				} else {
					latMax = mid
				}
			}
			even = !even
		}
	}
	return (latMin + latMax) / 2, (lngMin + lngMax) / 2
}

// cellSize returns the lat/lng extent of a geohash cell at the given
// precision.
func cellSize(precision int) (dLat, dLng float64) {
	latBits := 0
	lngBits := 0
	for i := 0; i < precision*5; i++ {
		if i%2 == 0 {
			lngBits++
		} else {
			latBits++
		}
	}
	return 180.0 / float64(int(1)<<latBits), 360.0 / float64(int(1)<<lngBits)
}

// GeohashNeighbors returns the cell plus its 8 surrounding cells, ordered
// center, N, NE, E, SE, S, SW, W, NW.
func GeohashNeighbors(hash string) []string {
	precision := len(hash)
	if precision == 0 {
		return nil
	}
	lat, lng := GeohashDecode(hash)
	dLat, dLng := cellSize(precision)

	offsets := [9][2]float64{
		{0, 0},
		{dLat, 0},
		{dLat, dLng},
		{0, dLng},
		{-dLat, dLng},
		{-dLat, 0},
		{-dLat, -dLng},
		{0, -dLng},
		{dLat, -dLng},
	}

	out := make([]string, 0, 9)
	for _, off := range offsets {
		nLat := lat + off[0]
		if nLat > 90 || nLat < -90 {
			continue // polar edge: no wrap across the pole
		}
		nLng := lng + off[1]
		if nLng >= 180 {
			nLng -= 360
		} else if nLng < -180 {
			nLng += 360
		}
		out = append(out, GeohashEncode(nLat, nLng, precision))
	}
	return out
}
