package dilithiumsig

import "github.com/kindlyrobotics/qshare/internal/ring"

// packHighBits serializes a poly-vector of already-high-bits-reduced
// polynomials into the nibble layout: byte i of each polynomial's N/2-byte
// segment is p[2i] | (p[2i+1] << 4), treated as unsigned 8-bit. Segments
// are concatenated in vector order.
func packHighBits(polys ring.Vector) []byte {
	out := make([]byte, 0, len(polys)*(ring.N/2))
	for _, p := range polys {
		for i := 0; i < ring.N/2; i++ {
			b := byte(p[2*i]&0xF) | byte(p[2*i+1]&0xF)<<4
			out = append(out, b)
		}
	}
	return out
}
