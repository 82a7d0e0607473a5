package signal

// flagWindow es un ring de capacidad fija con las últimas observaciones
// booleanas. Cuenta las true que contiene para que Any sea O(1).
type flagWindow struct {
	buf   []bool
	next  int
	size  int
	trues int
}

func newFlagWindow(capacity int) *flagWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &flagWindow{buf: make([]bool, capacity)}
}

// Push registra una observación y expulsa la más antigua si está lleno.
func (w *flagWindow) Push(v bool) {
	if w.size == len(w.buf) {
		if w.buf[w.next] {
			w.trues--
		}
	} else {
		w.size++
	}
	w.buf[w.next] = v
	if v {
		w.trues++
	}
	w.next = (w.next + 1) % len(w.buf)
}

// Any indica si alguna observación es true.
func (w *flagWindow) Any() bool { return w.trues > 0 }
