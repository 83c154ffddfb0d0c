package reserve

// Rank scores a candidate that packs n buffers of width w into area slots
// while need buffers are still outstanding. Scores only compare candidates
// for the same request: fewer rounds to finish the request rank first, then
// density. ok is false when the candidate packs nothing.
func Rank(n, w, area, need int) (score int64, ok bool) {
	if n <= 0 || area <= 0 {
		return 0, false
	}
	rounds := int64((need + n - 1) / n)
	coarse := rankBase - rounds*int64(area)*32
	fine := int64(1024*n*((w*3+1)>>1)) / int64(area)
	return coarse + fine, true
}
