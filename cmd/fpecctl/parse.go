package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseUint32 accepts Go integer literal syntax: 0x8000_0000, 0b1010, 1024.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}

// parseRegion parses START:SIZE.
func parseRegion(s string) (start, size uint32, err error) {
	startStr, sizeStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid region %q: want START:SIZE", s)
	}
	if start, err = parseUint32(startStr); err != nil {
		return 0, 0, err
	}
	if size, err = parseUint32(sizeStr); err != nil {
		return 0, 0, err
	}
	if size == 0 {
		return 0, 0, fmt.Errorf("invalid region %q: size is zero", s)
	}
	return start, size, nil
}
