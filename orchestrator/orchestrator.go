// Package orchestrator wires envelope, document, summary, editapplier and
// itemmodel together into the handful of whole-file operations a save
// editor actually performs: load a save into a summary, apply an edit and
// write a save back out, and the item-aware variants that walk the
// document swapping serials for decoded stat views and back.
package orchestrator

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"vaultcodec/archive"
	"vaultcodec/config"
	"vaultcodec/document"
	"vaultcodec/editapplier"
	"vaultcodec/editstate"
	"vaultcodec/envelope"
	"vaultcodec/itemmodel"
	"vaultcodec/summary"
)

// LoadedSave bundles the pieces DecryptToDocument/Load and the bundle walker
// hand back: the slot's name in its originating container, the decoded
// document tree, and its derived summary.
type LoadedSave struct {
	Name    string
	Document *document.Document
	Summary *summary.SaveSummary
}

// DecodedItemEntry is one item serial found while walking a document,
// alongside what itemmodel made of it.
type DecodedItemEntry struct {
	Path           string
	OriginalSerial string
	ManufacturerIndex uint32
	Level          uint32
	Catalog        string
	HasCatalogEntry bool
	DecodeError    string
}

// itemSerialPrefix is the leading marker every encoded item/equipment serial
// carries ahead of its base85 body.
const itemSerialPrefix = "@U"

// DecryptToDocument reverses the save file's outer envelope and parses the
// resulting Ion bytes into a Document tree.
func DecryptToDocument(raw []byte, accountID string, log *zap.Logger) (*document.Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("decrypting save envelope", zap.Int("bytes", len(raw)))

	plain, err := envelope.Decrypt(raw, accountID)
	if err != nil {
		log.Error("envelope decrypt failed", zap.Error(err))
		return nil, fmt.Errorf("orchestrator: decrypting envelope: %w", err)
	}

	doc, err := document.Decode(plain)
	if err != nil {
		log.Error("document decode failed", zap.Error(err))
		return nil, fmt.Errorf("orchestrator: decoding document: %w", err)
	}
	log.Debug("decrypted save envelope", zap.Int("plain_bytes", len(plain)))
	return doc, nil
}

// Load reads a save file from disk, decrypts it, parses it, and derives its
// summary view.
func Load(path, accountID string, log *zap.Logger) (*LoadedSave, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading %q: %w", path, err)
	}
	doc, err := DecryptToDocument(raw, accountID, log)
	if err != nil {
		return nil, err
	}
	return &LoadedSave{Name: path, Document: doc, Summary: summary.Derive(path, doc)}, nil
}

// ApplyAndEncrypt mutates doc per edits and re-seals it into a save file's
// on-disk byte layout.
func ApplyAndEncrypt(doc *document.Document, edits *editstate.EditState, accountID string, log *zap.Logger) ([]byte, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := editapplier.ApplyEdits(doc, edits); err != nil {
		return nil, fmt.Errorf("orchestrator: applying edits: %w", err)
	}
	plain, err := document.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encoding document: %w", err)
	}
	out, err := envelope.Encrypt(plain, accountID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encrypting envelope: %w", err)
	}
	log.Debug("applied edits and re-encrypted save", zap.Int("plain_bytes", len(plain)), zap.Int("out_bytes", len(out)))
	return out, nil
}

// sideMapFieldName is the document field name reserved for a decoded-item
// side-mapping. EncryptWithReencodedItems strips a root field of this name
// before encoding; nothing in this package writes it.
const sideMapFieldName = "_DECODED_ITEMS"

// DecryptWithDecodedItems decrypts path and additionally walks every string
// leaf looking for item/equipment serials, returning next to the document a
// map from each serial's dotted path to its decoded metadata, so a caller
// (or UI) can present stats without round-tripping through itemmodel itself.
// The returned document is not modified by the walk. A serial that fails to
// decode is recorded as a decode-error entry rather than aborting the walk.
func DecryptWithDecodedItems(path, accountID string, log *zap.Logger) (*document.Document, map[string]DecodedItemEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: reading %q: %w", path, err)
	}
	doc, err := DecryptToDocument(raw, accountID, log)
	if err != nil {
		return nil, nil, err
	}

	decoded := map[string]DecodedItemEntry{}
	walkStrings(doc, "", func(p, serial string) {
		if !strings.HasPrefix(serial, itemSerialPrefix) {
			return
		}
		entry := DecodedItemEntry{Path: p, OriginalSerial: serial}
		model, err := itemmodel.Decode(serial)
		if err != nil {
			entry.DecodeError = err.Error()
		} else {
			entry.ManufacturerIndex = model.ManufacturerIndex
			entry.Level = model.Level
			entry.HasCatalogEntry = model.HasCatalogEntry
			if model.HasCatalogEntry {
				entry.Catalog = fmt.Sprintf("%s/%s", model.Catalog.Manufacturer, model.Catalog.ItemType)
			}
		}
		decoded[p] = entry
	})

	return doc, decoded, nil
}

// EncryptWithReencodedItems removes any root sideMapFieldName field from doc
// and re-seals it. It re-encodes no item serials: the serial strings in doc
// are encoded as they stand, and the map returned by DecryptWithDecodedItems
// is not consulted.
func EncryptWithReencodedItems(doc *document.Document, accountID string, log *zap.Logger) ([]byte, error) {
	doc.Fields = removeSideMapField(doc.Fields)
	plain, err := document.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encoding document: %w", err)
	}
	out, err := envelope.Encrypt(plain, accountID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encrypting envelope: %w", err)
	}
	return out, nil
}

func removeSideMapField(fields []document.Field) []document.Field {
	out := fields[:0]
	for _, f := range fields {
		if f.Name != sideMapFieldName {
			out = append(out, f)
		}
	}
	return out
}

// walkStrings visits every string leaf in d, calling visit with its dotted
// path (struct fields by name, list elements by index).
func walkStrings(d *document.Document, path string, visit func(path, value string)) {
	if d == nil {
		return
	}
	switch d.Kind {
	case document.KindString:
		visit(path, d.Str)
	case document.KindList:
		for i, item := range d.List {
			walkStrings(item, fmt.Sprintf("%s[%d]", path, i), visit)
		}
	case document.KindStruct:
		for _, f := range d.Fields {
			child := f.Name
			if path != "" {
				child = path + "." + f.Name
			}
			walkStrings(f.Value, child, visit)
		}
	case document.KindIntMap:
		for _, f := range d.IntMap {
			walkStrings(f.Value, fmt.Sprintf("%s[%d]", path, f.Key), visit)
		}
	}
}

// DecryptBundle walks a zip archive of save slots (as used for the game's
// multi-profile/multi-slot save layout), decrypting and summarizing every
// ".sav" entry. A corrupt entry is reported through rpt (if non-nil) and
// collected into the returned error rather than aborting the rest of the
// batch.
func DecryptBundle(zipPath, accountID string, rpt *config.Report, log *zap.Logger) ([]LoadedSave, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		saves []LoadedSave
		errs  error
	)

	err := archive.Walk(zipPath, "", func(_ string, f *zip.File) error {
		if !strings.HasSuffix(f.Name, ".sav") {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("orchestrator: opening %q in %q: %w", f.Name, zipPath, err))
			return nil
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("orchestrator: reading %q in %q: %w", f.Name, zipPath, err))
			return nil
		}

		doc, err := DecryptToDocument(raw, accountID, log)
		if err != nil {
			log.Warn("bundle entry failed to decrypt", zap.String("entry", f.Name), zap.Error(err))
			if rpt != nil {
				// Slot names come straight out of the zip entry and may contain
				// arbitrary path-unfriendly characters; slugify before using them
				// as report archive member names.
				safeName := slug.Make(f.Name)
				rpt.StoreData("corrupt/"+safeName, raw)
				var cse *envelope.CorruptStreamError
				if errors.As(err, &cse) {
					rpt.StoreData("corrupt/"+safeName+".diagnostic.txt", []byte(cse.Error()))
				}
			}
			errs = multierr.Append(errs, fmt.Errorf("orchestrator: entry %q: %w", f.Name, err))
			return nil
		}

		saves = append(saves, LoadedSave{Name: f.Name, Document: doc, Summary: summary.Derive(f.Name, doc)})
		return nil
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("orchestrator: walking bundle %q: %w", zipPath, err))
	}

	return saves, errs
}
