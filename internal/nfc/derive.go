package nfc

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Protocol framing. These values define compatibility with the tag writer
// and must not change.
const (
	basePrefix   = "1B"
	baseSuffix   = ",3008"
	writePrefix  = "A2"
	clearPayload = "00000000"

	firstConfigBlock = 4
	lastClearBlock   = 8
)

// digestOffsets select the digest bytes surfaced in the base command.
var digestOffsets = [4]int{0, 5, 13, 17}

const digestPairs = sha1.Size

// hashIdentifier digests the raw UID bytes.
var hashIdentifier = sha1.Sum

// BlockWrite is a single write command for one tag block.
type BlockWrite struct {
	Block   int    `json:"block"`
	Command string `json:"command"`
}

// CommandSet is the immutable result of a derivation.
type CommandSet struct {
	Identifier  string       `json:"identifier"`
	Digest      string       `json:"digest"`
	Indices     [4]int       `json:"indices"`
	BaseCommand string       `json:"baseCommand"`
	Writes      []BlockWrite `json:"writes"`
}

// Derive validates identifier and block and builds the command set.
//
// An empty or "0" block is replaced by DefaultBlock before validation.
// Validation failures wrap ErrInvalidIdentifier or ErrInvalidBlock and no
// hashing takes place. Anything that goes wrong after validation is reported
// as ErrInternal.
func Derive(identifier, block string) (set *CommandSet, err error) {
	block = ResolveBlock(block)

	if !ValidIdentifier(identifier) {
		return nil, &DeriveError{
			Code:  ErrInvalidIdentifier,
			Cause: fmt.Errorf("want %d bytes as %d hex characters", IdentifierSize, IdentifierSize*2),
		}
	}
	if !ValidBlock(block) {
		return nil, &DeriveError{
			Code:  ErrInvalidBlock,
			Cause: fmt.Errorf("want %d space separated hex bytes", BlockSize),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			set = nil
			err = &DeriveError{Code: ErrInternal, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	uid := NormalizeIdentifier(identifier)
	raw, err := hex.DecodeString(uid)
	if err != nil {
		return nil, &DeriveError{Code: ErrInternal, Cause: err}
	}

	sum := hashIdentifier(raw)
	digest := hex.EncodeToString(sum[:])
	indices := selectIndices(int(sum[0]))

	var extracted strings.Builder
	for _, idx := range indices {
		extracted.WriteString(digest[idx*2 : idx*2+2])
	}

	return &CommandSet{
		Identifier:  uid,
		Digest:      digest,
		Indices:     indices,
		BaseCommand: basePrefix + extracted.String() + baseSuffix,
		Writes:      blockWrites(strings.Fields(block)),
	}, nil
}

func selectIndices(first int) [4]int {
	var out [4]int
	for i, off := range digestOffsets {
		out[i] = (first + off) % digestPairs
	}
	return out
}

func blockWrites(tokens []string) []BlockWrite {
	writes := make([]BlockWrite, 0, lastClearBlock-firstConfigBlock+1)
	writes = append(writes, BlockWrite{
		Block:   firstConfigBlock,
		Command: writeCommand(firstConfigBlock, strings.Join(tokens, "")),
	})
	for b := firstConfigBlock + 1; b <= lastClearBlock; b++ {
		writes = append(writes, BlockWrite{Block: b, Command: writeCommand(b, clearPayload)})
	}
	return writes
}

func writeCommand(block int, payload string) string {
	return fmt.Sprintf("%s%02X%s", writePrefix, block, payload)
}

// Commands returns the block 4 to 8 write commands in block order.
func (c *CommandSet) Commands() []string {
	out := make([]string, len(c.Writes))
	for i, w := range c.Writes {
		out[i] = w.Command
	}
	return out
}

// Combined is the single-line form: the base command followed by every
// write, comma separated.
func (c *CommandSet) Combined() string {
	return c.BaseCommand + "," + strings.Join(c.Commands(), ",")
}

// WriteLine joins the base command with one block write.
func (c *CommandSet) WriteLine(w BlockWrite) string {
	return c.BaseCommand + "," + w.Command
}

// Lines returns the display lines in order: the combined command, the base
// command, then one line per block write.
func (c *CommandSet) Lines() []string {
	lines := make([]string, 0, len(c.Writes)+2)
	lines = append(lines, c.Combined(), c.BaseCommand)
	for _, w := range c.Writes {
		lines = append(lines, c.WriteLine(w))
	}
	return lines
}
