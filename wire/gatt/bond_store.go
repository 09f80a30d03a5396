package gatt

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/user/gatt-dispatch/util"
)

// Bond files are written with Core Deterministic Encoding so the same
// subscriptions always produce the same bytes.
var (
	bondEncMode cbor.EncMode
	bondDecMode cbor.DecMode
)

func init() {
	var err error

	bondEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("gatt: CBOR encoder initialization failed: " + err.Error())
	}

	bondDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("gatt: CBOR decoder initialization failed: " + err.Error())
	}
}

// BondRecord is what survives a disconnect for a bonded peer
type BondRecord struct {
	PeerID  string            `cbor:"peer_id"`
	CCCDs   map[uint16]uint16 `cbor:"cccds"` // value handle -> CCCD value
	SavedAt time.Time         `cbor:"saved_at"`
}

// BondStore persists CCCD state of bonded peers, one file per peer
type BondStore struct {
	dir string
}

// NewBondStore stores bonds in dir, or util.GetBondDir() when dir is empty
func NewBondStore(dir string) *BondStore {
	if dir == "" {
		dir = util.GetBondDir()
	}
	return &BondStore{dir: dir}
}

// Dir returns the directory bond files live in
func (bs *BondStore) Dir() string {
	return bs.dir
}

func (bs *BondStore) path(peerID string) (string, error) {
	if peerID == "" || peerID != filepath.Base(peerID) || strings.HasPrefix(peerID, ".") {
		return "", errors.Errorf("gatt: invalid peer id %q", peerID)
	}
	return filepath.Join(bs.dir, peerID+".cbor"), nil
}

// Save writes the peer's CCCD snapshot
func (bs *BondStore) Save(peerID string, cccds map[uint16]uint16) error {
	path, err := bs.path(peerID)
	if err != nil {
		return err
	}

	data, err := bondEncMode.Marshal(BondRecord{
		PeerID:  peerID,
		CCCDs:   cccds,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrapf(err, "gatt: encode bond for %s", peerID)
	}

	if err := os.MkdirAll(bs.dir, 0755); err != nil {
		return errors.Wrap(err, "gatt: create bond directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "gatt: write bond for %s", peerID)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "gatt: commit bond for %s", peerID)
	}
	return nil
}

// Load returns the peer's saved CCCD snapshot. A peer that was never saved
// has no subscriptions.
func (bs *BondStore) Load(peerID string) (map[uint16]uint16, error) {
	path, err := bs.path(peerID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[uint16]uint16{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "gatt: read bond for %s", peerID)
	}

	var record BondRecord
	if err := bondDecMode.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, "gatt: decode bond for %s", peerID)
	}
	if record.PeerID != peerID {
		return nil, errors.Errorf("gatt: bond file for %s belongs to %s", peerID, record.PeerID)
	}
	if record.CCCDs == nil {
		record.CCCDs = map[uint16]uint16{}
	}
	return record.CCCDs, nil
}

// Delete forgets a bond. Deleting an unknown peer is not an error.
func (bs *BondStore) Delete(peerID string) error {
	path, err := bs.path(peerID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "gatt: delete bond for %s", peerID)
	}
	return nil
}
