package history

// Stats summarizes the buffer contents for periodic status reporting,
// computed over whatever window the buffer currently holds.
type Stats struct {
	Count          int
	TemperatureMin float64
	TemperatureMax float64
	TemperatureAvg float64
	PowerMin       float64
	PowerMax       float64
	PowerAvg       float64
}

// Stats computes summary statistics over the current contents. The
// buffer is walked under the read lock; no allocation beyond the result.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Count: s.count}
	if s.count == 0 {
		return st
	}

	first := s.buf[s.head]
	st.TemperatureMin, st.TemperatureMax = first.Temperature, first.Temperature
	st.PowerMin, st.PowerMax = first.Power, first.Power

	var tempSum, powerSum float64
	for i := 0; i < s.count; i++ {
		sample := s.buf[(s.head+i)%len(s.buf)]

		tempSum += sample.Temperature
		powerSum += sample.Power

		if sample.Temperature < st.TemperatureMin {
			st.TemperatureMin = sample.Temperature
		}
		if sample.Temperature > st.TemperatureMax {
			st.TemperatureMax = sample.Temperature
		}
		if sample.Power < st.PowerMin {
			st.PowerMin = sample.Power
		}
		if sample.Power > st.PowerMax {
			st.PowerMax = sample.Power
		}
	}

	st.TemperatureAvg = tempSum / float64(s.count)
	st.PowerAvg = powerSum / float64(s.count)

	return st
}
