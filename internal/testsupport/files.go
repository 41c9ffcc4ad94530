package testsupport

// Payload returns size bytes cycling through a-z so that reordered or
// dropped chunks show up in comparisons. A size <= 0 returns one byte.
func Payload(size int) []byte {
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 'a' + byte(i%26)
	}
	return buf
}
