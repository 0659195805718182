package drawing

// Log is the ordered history of drawing instructions. It is not safe for
// concurrent use; a board goroutine or a replica lock owns it.
type Log struct {
	settings     Settings
	instructions []Instruction
}

func NewLog(settings Settings) *Log {
	return &Log{settings: settings}
}

func (l *Log) Settings() Settings { return l.settings }

func (l *Log) Len() int { return len(l.instructions) }

// AppendStroke opens a new stroke at the end of the log. It returns the
// clamped weight that was stored, and false when seed is off the canvas.
func (l *Log) AppendStroke(owner string, seed Position, color Color, weight float64) (float64, bool) {
	if !l.settings.Contains(seed) {
		return 0, false
	}
	weight = l.settings.ClampWeight(weight)
	l.instructions = append(l.instructions, &Stroke{
		Path:   []Position{seed},
		Color:  color,
		Weight: weight,
		Owner:  owner,
	})
	return weight, true
}

// ExtendStroke appends pos to the open stroke. The stroke must be the last
// instruction, have a non-empty path, and belong to owner.
func (l *Log) ExtendStroke(owner string, pos Position) bool {
	if !l.settings.Contains(pos) {
		return false
	}
	s, ok := l.openStroke()
	if !ok || s.Owner != owner {
		return false
	}
	s.Path = append(s.Path, pos)
	return true
}

func (l *Log) openStroke() (*Stroke, bool) {
	if len(l.instructions) == 0 {
		return nil, false
	}
	switch last := l.instructions[len(l.instructions)-1].(type) {
	case *Stroke:
		return last, len(last.Path) > 0
	case Fill:
		return nil, false
	default:
		return nil, false
	}
}

func (l *Log) AppendFill(f Fill) bool {
	if !l.settings.Contains(f.Position) {
		return false
	}
	l.instructions = append(l.instructions, f)
	return true
}

// Append adds an already validated instruction, as received in a snapshot.
func (l *Log) Append(in Instruction) {
	l.instructions = append(l.instructions, Clone(in))
}

func (l *Log) Undo() bool {
	if len(l.instructions) == 0 {
		return false
	}
	l.instructions[len(l.instructions)-1] = nil
	l.instructions = l.instructions[:len(l.instructions)-1]
	return true
}

func (l *Log) Reset() {
	l.instructions = nil
}

// Snapshot returns a deep copy that can be handed to other goroutines.
func (l *Log) Snapshot() []Instruction {
	out := make([]Instruction, len(l.instructions))
	for i, in := range l.instructions {
		out[i] = Clone(in)
	}
	return out
}

// Each calls fn for every instruction in order without copying.
func (l *Log) Each(fn func(Instruction)) {
	for _, in := range l.instructions {
		fn(in)
	}
}

func (l *Log) Last() (Instruction, bool) {
	if len(l.instructions) == 0 {
		return nil, false
	}
	return l.instructions[len(l.instructions)-1], true
}
