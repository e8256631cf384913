package apt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"

	"github.com/etnz/debcheck/deb"
)

// Release is the content of a Release (or verified InRelease) file: the
// archive description and the checksums of its indices.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#A.22Release.22_files
type Release struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Date          string
	Description   string
	Architectures []string
	Components    []string

	// SHA256 maps index paths, relative to the Release file, to their checksum.
	SHA256 map[string]Checksum
}

// Checksum is a SHA256 entry of a Release file.
type Checksum struct {
	Hash string
	Size int64
}

// ParseRelease parses the plaintext of a Release file.
func ParseRelease(content []byte) (*Release, error) {
	para, err := deb.ParseParagraph(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing release file: %w", err)
	}
	get := func(field string) string {
		return strings.TrimSpace(para.Value(deb.ControlField(field)))
	}
	r := &Release{
		Origin:        get("Origin"),
		Label:         get("Label"),
		Suite:         get("Suite"),
		Codename:      get("Codename"),
		Date:          get("Date"),
		Description:   get("Description"),
		Architectures: strings.Fields(get("Architectures")),
		Components:    strings.Fields(get("Components")),
		SHA256:        make(map[string]Checksum),
	}
	for _, line := range strings.Split(para.Value(deb.FieldSHA256), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed SHA256 entry %q", line)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed size in SHA256 entry %q", line)
		}
		r.SHA256[fields[2]] = Checksum{Hash: strings.ToLower(fields[0]), Size: size}
	}
	return r, nil
}

// Verify checks data against the checksum the release lists for path.
func (r *Release) Verify(path string, data []byte) error {
	sum, ok := r.SHA256[path]
	if !ok {
		return fmt.Errorf("%s is not listed in the release file", path)
	}
	if int64(len(data)) != sum.Size {
		return fmt.Errorf("%s: size %d, release says %d", path, len(data), sum.Size)
	}
	h := sha256.Sum256(data)
	if got := hex.EncodeToString(h[:]); got != sum.Hash {
		return fmt.Errorf("%s: checksum mismatch", path)
	}
	return nil
}

// ReadKeyring reads an OpenPGP keyring, armored or binary.
func ReadKeyring(r io.Reader) (openpgp.EntityList, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	if keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(content)); err == nil {
		return keys, nil
	}
	keys, err := openpgp.ReadKeyRing(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	return keys, nil
}

// VerifyInRelease checks the clearsigned InRelease content against keyring
// and returns the signed Release text.
func VerifyInRelease(content []byte, keyring openpgp.KeyRing) ([]byte, error) {
	block, _ := clearsign.Decode(content)
	if block == nil {
		return nil, fmt.Errorf("InRelease is not clearsigned")
	}
	if _, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil); err != nil {
		return nil, fmt.Errorf("InRelease signature: %w", err)
	}
	return block.Plaintext, nil
}

// decodeClearsigned returns the plaintext of clearsigned content without
// checking the signature. Unsigned content is returned as is.
func decodeClearsigned(content []byte) ([]byte, bool) {
	block, _ := clearsign.Decode(content)
	if block == nil {
		return content, false
	}
	return block.Plaintext, true
}

// SignRelease clearsigns a Release file with the first private key of an
// armored keyring, producing InRelease content.
func SignRelease(content []byte, armoredKey string) ([]byte, error) {
	signer, err := privateEntity(armoredKey)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	w, err := clearsign.Encode(&out, signer.PrivateKey, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// PublicKey exports the public part of the first private key of an armored
// keyring, armored or binary.
func PublicKey(armoredKey string, armored bool) ([]byte, error) {
	signer, err := privateEntity(armoredKey)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if !armored {
		if err := signer.Serialize(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := signer.Serialize(w); err != nil {
		return nil, err
	}
	w.Close()
	return buf.Bytes(), nil
}

func privateEntity(armoredKey string) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.PrivateKey != nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no private key")
}
