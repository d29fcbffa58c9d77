// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "testing"

func TestFromEnvDefaultsAllFalse(t *testing.T) {
	for _, name := range []string{
		"SAMM_TRACE", "SAMM_STATS", "BASIC_MEMORY_STATS",
		"ENABLE_NEON_COPY", "ENABLE_NEON_ARITH", "ENABLE_NEON_LOOP",
	} {
		t.Setenv(name, "")
	}
	rt := FromEnv()
	if rt.SAMMTrace || rt.SAMMStats || rt.BasicMemoryStats {
		t.Errorf("expected all flags false with no environment set, got %+v", rt)
	}
	if rt.EnableNeonCopy || rt.EnableNeonArith || rt.EnableNeonLoop {
		t.Errorf("expected NEON flags false with no environment set, got %+v", rt)
	}
}

func TestFromEnvReadsEachFlagIndependently(t *testing.T) {
	t.Setenv("SAMM_TRACE", "1")
	t.Setenv("ENABLE_NEON_ARITH", "1")
	rt := FromEnv()
	if !rt.SAMMTrace {
		t.Errorf("SAMMTrace = false, want true")
	}
	if !rt.EnableNeonArith {
		t.Errorf("EnableNeonArith = false, want true")
	}
	if rt.SAMMStats || rt.BasicMemoryStats || rt.EnableNeonCopy || rt.EnableNeonLoop {
		t.Errorf("unset flags should remain false, got %+v", rt)
	}
}

func TestFromEnvRejectsNonOneValues(t *testing.T) {
	t.Setenv("SAMM_TRACE", "true")
	if FromEnv().SAMMTrace {
		t.Errorf("only the literal value %q should enable a flag", "1")
	}
}
