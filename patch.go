package gonoisesynth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/GeoffreyPlitt/debuggo"
)

var patchDebug = debuggo.Debug("noisesynth:patch")

// Patch is a parsed patch file. Opcodes missing from a section are looked up
// in <global> before falling back to the built-in default.
type Patch struct {
	Global *PatchSection
	Engine *PatchSection
	Voice  *PatchSection
	Reverb *PatchSection
	Notes  []*PatchSection
}

// PatchSection is one <section> of a patch file
type PatchSection struct {
	Type    string            // "global", "engine", "voice", "reverb" or "note"
	Opcodes map[string]string // opcode name -> value
	parent  *PatchSection
}

var knownOpcodes = map[string]bool{
	// Engine shape
	"voices":      true,
	"sample_rate": true,
	"block_size":  true,
	"channels":    true,
	"seed":        true,

	// Voice parameters
	"key_freq":      true,
	"cleaning":      true,
	"ampeg_attack":  true,
	"ampeg_decay":   true,
	"ampeg_sustain": true,
	"ampeg_release": true,
	"volume":        true,

	// Master reverb
	"send":      true,
	"room_size": true,
	"damping":   true,
	"width":     true,

	// Score
	"key":    true,
	"vel":    true,
	"start":  true,
	"length": true,
}

// ParsePatchFile parses the patch file at path
func ParsePatchFile(path string) (*Patch, error) {
	patchDebug("Starting to parse patch file: %s", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open patch file: %w", err)
	}
	defer file.Close()

	patch, err := ParsePatch(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse patch file %s: %w", path, err)
	}
	return patch, nil
}

// ParsePatch parses patch text from r
func ParsePatch(r io.Reader) (*Patch, error) {
	patch := &Patch{
		Global: newPatchSection("global", nil),
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	var current *PatchSection

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		// A header may share its line with opcodes: <note> key=60
		if strings.HasPrefix(line, "<") {
			end := strings.Index(line, ">")
			if end == -1 {
				patchDebug("Warning: Unterminated section header at line %d: %s", lineNum, line)
				continue
			}
			current = patch.openSection(strings.ToLower(strings.TrimSpace(line[1:end])), lineNum)
			line = strings.TrimSpace(line[end+1:])
			if line == "" {
				continue
			}
		}

		if current == nil {
			patchDebug("Warning: Opcode found outside of section at line %d: %s", lineNum, line)
			continue
		}
		parsePatchOpcodes(line, current, lineNum)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading patch: %w", err)
	}

	patchDebug("Parsing complete. Found %d notes", len(patch.Notes))
	return patch, nil
}

func newPatchSection(sectionType string, parent *PatchSection) *PatchSection {
	return &PatchSection{
		Type:    sectionType,
		Opcodes: make(map[string]string),
		parent:  parent,
	}
}

// openSection returns the section new opcodes go to. Repeated singleton
// sections are merged; every <note> is its own section.
func (p *Patch) openSection(sectionType string, lineNum int) *PatchSection {
	patchDebug("Found section: %s", sectionType)

	switch sectionType {
	case "global":
		return p.Global
	case "engine":
		if p.Engine == nil {
			p.Engine = newPatchSection(sectionType, p.Global)
		}
		return p.Engine
	case "voice":
		if p.Voice == nil {
			p.Voice = newPatchSection(sectionType, p.Global)
		}
		return p.Voice
	case "reverb":
		if p.Reverb == nil {
			p.Reverb = newPatchSection(sectionType, p.Global)
		}
		return p.Reverb
	case "note":
		note := newPatchSection(sectionType, p.Global)
		p.Notes = append(p.Notes, note)
		return note
	default:
		patchDebug("Warning: Unknown section type %q at line %d, its opcodes are ignored", sectionType, lineNum)
		return newPatchSection(sectionType, nil)
	}
}

func parsePatchOpcodes(line string, section *PatchSection, lineNum int) {
	for _, part := range strings.Fields(line) {
		// Inline comment ends the line
		if strings.HasPrefix(part, "//") {
			break
		}

		equalIndex := strings.Index(part, "=")
		if equalIndex == -1 {
			continue
		}

		opcode := strings.ToLower(strings.TrimSpace(part[:equalIndex]))
		value := strings.TrimSpace(part[equalIndex+1:])

		if knownOpcodes[opcode] {
			section.Opcodes[opcode] = value
		} else {
			patchDebug("Warning: Unknown opcode '%s' at line %d", opcode, lineNum)
		}
	}
}

// lookup finds an opcode in the section or its parent
func (s *PatchSection) lookup(opcode string) (string, bool) {
	for sec := s; sec != nil; sec = sec.parent {
		if value, ok := sec.Opcodes[opcode]; ok {
			return value, true
		}
	}
	return "", false
}

// GetIntOpcode returns an inherited integer opcode, or defaultValue if not
// found or invalid
func (s *PatchSection) GetIntOpcode(opcode string, defaultValue int) int {
	if s == nil {
		return defaultValue
	}
	value, ok := s.lookup(opcode)
	if !ok {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		patchDebug("Warning: Invalid integer value for opcode %s: %s", opcode, value)
		return defaultValue
	}
	return intVal
}

// GetFloatOpcode returns an inherited float opcode, or defaultValue if not
// found or invalid
func (s *PatchSection) GetFloatOpcode(opcode string, defaultValue float64) float64 {
	if s == nil {
		return defaultValue
	}
	value, ok := s.lookup(opcode)
	if !ok {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		patchDebug("Warning: Invalid float value for opcode %s: %s", opcode, value)
		return defaultValue
	}
	return floatVal
}

// section returns s, or a detached section that only sees <global>
func (p *Patch) section(s *PatchSection, sectionType string) *PatchSection {
	if s != nil {
		return s
	}
	return newPatchSection(sectionType, p.Global)
}

// Config returns the engine shape described by the patch
func (p *Patch) Config() Config {
	sec := p.section(p.Engine, "engine")
	def := DefaultConfig()
	seed := sec.GetIntOpcode("seed", int(def.Seed))
	if seed < 0 {
		seed = -seed
	}
	return Config{
		Voices:     sec.GetIntOpcode("voices", def.Voices),
		SampleRate: sec.GetFloatOpcode("sample_rate", def.SampleRate),
		BlockSize:  sec.GetIntOpcode("block_size", def.BlockSize),
		Channels:   sec.GetIntOpcode("channels", def.Channels),
		Seed:       uint64(seed),
	}
}

// Parameters returns the voice parameters described by the patch
func (p *Patch) Parameters() SharedSynthParameters {
	sec := p.section(p.Voice, "voice")
	def := DefaultParameters()
	return SharedSynthParameters{
		KeyFreq:       sec.GetFloatOpcode("key_freq", def.KeyFreq),
		CleaningLevel: sec.GetFloatOpcode("cleaning", def.CleaningLevel),
		ADSR: ADSR{
			Attack:  sec.GetFloatOpcode("ampeg_attack", def.ADSR.Attack),
			Decay:   sec.GetFloatOpcode("ampeg_decay", def.ADSR.Decay),
			Sustain: sec.GetFloatOpcode("ampeg_sustain", def.ADSR.Sustain),
			Release: sec.GetFloatOpcode("ampeg_release", def.ADSR.Release),
		},
		Volume: sec.GetFloatOpcode("volume", def.Volume),
	}
}

// ReverbSettings returns the master reverb settings described by the patch
func (p *Patch) ReverbSettings() ReverbSettings {
	sec := p.section(p.Reverb, "reverb")
	def := DefaultReverbSettings()
	return ReverbSettings{
		Send:     sec.GetFloatOpcode("send", def.Send),
		RoomSize: sec.GetFloatOpcode("room_size", def.RoomSize),
		Damping:  sec.GetFloatOpcode("damping", def.Damping),
		Width:    sec.GetFloatOpcode("width", def.Width),
	}
}

// Score returns the <note> sections as a score. Notes without a valid key
// are skipped.
func (p *Patch) Score() Score {
	score := make(Score, 0, len(p.Notes))
	for i, sec := range p.Notes {
		key := sec.GetIntOpcode("key", -1)
		if key < 0 || key > 127 {
			patchDebug("Warning: Skipping note %d with invalid key %d", i, key)
			continue
		}
		score = append(score, ScoreNote{
			Note:     key,
			Velocity: clampRange(sec.GetFloatOpcode("vel", 100), 0, 127) / 127.0,
			Start:    clampRange(sec.GetFloatOpcode("start", 0), 0, maxScoreSeconds),
			Length:   clampRange(sec.GetFloatOpcode("length", 1), 0, maxScoreSeconds),
		})
	}
	return score
}
