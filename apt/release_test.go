package apt

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// generateTestKey returns an armored private key.
func generateTestKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Test User", "test", "test@example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	var keyBuf bytes.Buffer
	w, err := armor.Encode(&keyBuf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return keyBuf.String()
}

func testKeyring(t *testing.T, privKey string, armored bool) openpgp.EntityList {
	t.Helper()
	pub, err := PublicKey(privKey, armored)
	if err != nil {
		t.Fatalf("PublicKey failed: %v", err)
	}
	keyring, err := ReadKeyring(bytes.NewReader(pub))
	if err != nil {
		t.Fatalf("ReadKeyring failed: %v", err)
	}
	return keyring
}

func releaseFor(files map[string][]byte) []byte {
	var b strings.Builder
	b.WriteString("Origin: Test\nLabel: TestRepo\nSuite: stable\nCodename: bookworm\n")
	b.WriteString("Architectures: amd64 arm64\nComponents: main contrib\nSHA256:\n")
	for name, content := range files {
		fmt.Fprintf(&b, " %x %d %s\n", sha256.Sum256(content), len(content), name)
	}
	return []byte(b.String())
}

func TestParseRelease(t *testing.T) {
	packages := []byte("Package: foo\n")
	r, err := ParseRelease(releaseFor(map[string][]byte{"main/binary-amd64/Packages": packages}))
	if err != nil {
		t.Fatalf("ParseRelease failed: %v", err)
	}
	if r.Origin != "Test" || r.Suite != "stable" || r.Codename != "bookworm" {
		t.Errorf("unexpected release %+v", r)
	}
	if len(r.Architectures) != 2 || r.Components[1] != "contrib" {
		t.Errorf("unexpected lists %v %v", r.Architectures, r.Components)
	}

	if err := r.Verify("main/binary-amd64/Packages", packages); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if err := r.Verify("main/binary-amd64/Packages", []byte("Package: bar\n")); err == nil {
		t.Error("expected a checksum mismatch")
	}
	if err := r.Verify("main/binary-amd64/Packages", []byte("short")); err == nil {
		t.Error("expected a size mismatch")
	}
	if err := r.Verify("main/binary-arm64/Packages", packages); err == nil {
		t.Error("expected an error for an unlisted file")
	}

	if _, err := ParseRelease([]byte("Origin: x\nSHA256:\n abc notanumber Packages\n")); err == nil {
		t.Error("expected an error for a malformed size")
	}
}

func TestSignAndVerifyInRelease(t *testing.T) {
	privKey := generateTestKey(t)
	release := releaseFor(nil)

	signed, err := SignRelease(release, privKey)
	if err != nil {
		t.Fatalf("SignRelease failed: %v", err)
	}
	if !bytes.Contains(signed, []byte("BEGIN PGP SIGNED MESSAGE")) {
		t.Fatalf("InRelease is not clearsigned:\n%s", signed)
	}

	for _, armored := range []bool{true, false} {
		plain, err := VerifyInRelease(signed, testKeyring(t, privKey, armored))
		if err != nil {
			t.Fatalf("VerifyInRelease (armored=%v) failed: %v", armored, err)
		}
		if !bytes.Contains(plain, []byte("Codename: bookworm")) {
			t.Errorf("unexpected plaintext %q", plain)
		}
	}

	other := testKeyring(t, generateTestKey(t), true)
	if _, err := VerifyInRelease(signed, other); err == nil {
		t.Error("expected a verification error with another key")
	}
	if _, err := VerifyInRelease(release, other); err == nil {
		t.Error("expected an error for unsigned content")
	}
	if _, err := SignRelease(release, "not a key"); err == nil {
		t.Error("expected an error for an invalid key")
	}
}
