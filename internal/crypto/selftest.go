// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package crypto

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
)

// known answer tests
var vectors = []struct {
	name       string
	key        string
	plaintext  string
	ciphertext string
}{
	{
		name:       "FIPS-197 C.1",
		key:        "000102030405060708090a0b0c0d0e0f",
		plaintext:  "00112233445566778899aabbccddeeff",
		ciphertext: "69c4e0d86a7b0430d8cdb78070b4c55a",
	},
	{
		name:       "SP 800-38A F.1.1",
		key:        "2b7e151628aed2a6abf7158809cf4f3c",
		plaintext:  "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e51" + "30c81c46a35ce411e5fbc1191a0a52eff69f2445df4f9b17ad2b417be66c3710",
		ciphertext: "3ad77bb40d7a3660a89ecaf32466ef97f5d3d58503b9699de785895a96fdbaaf" + "43b1cd7f598ece23881b00e3ed0306887b0c785e27e8ad3f8223207104725dd4",
	},
}

// SelfTest encrypts the known answer test vectors through the driver task,
// it returns the names of the passed tests.
func SelfTest(ctx context.Context, task Sender) (passed []string, err error) {
	for _, v := range vectors {
		key, _ := hex.DecodeString(v.key)
		pt, _ := hex.DecodeString(v.plaintext)
		ct, _ := hex.DecodeString(v.ciphertext)

		out := make([]byte, len(pt))

		if err = EncryptECB(ctx, task, key, out, pt); err != nil {
			return passed, fmt.Errorf("%s: %w", v.name, err)
		}

		if !bytes.Equal(out, ct) {
			return passed, fmt.Errorf("%s: mismatch, got %x", v.name, out)
		}

		passed = append(passed, v.name)
	}

	return
}
