package store

// AgentDecision is one persisted LLM decision.
type AgentDecision struct {
	ID            int64
	DecisionDate  string
	MarketContext string
	QuantSignals  string // json
	LLMAnalysis   string // json
	LLMDecision   string // json
	Confidence    float64
	Reasoning     string
	Challenge     string
	ModelUsed     string
	TokensUsed    int
	CreatedAt     string
}

// SaveDecision persists a decision and returns its row id.
func (s *Store) SaveDecision(d AgentDecision) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO agent_decisions
			(decision_date, market_context, quant_signals, llm_analysis,
			 llm_decision, confidence, reasoning, challenge, model_used, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.DecisionDate, d.MarketContext, d.QuantSignals, d.LLMAnalysis,
		d.LLMDecision, d.Confidence, d.Reasoning, d.Challenge, d.ModelUsed, d.TokensUsed)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DecisionsDueForReflection returns decisions older than the period
// that have no reflection row for that period yet.
func (s *Store) DecisionsDueForReflection(cutoffDate, period string) ([]AgentDecision, error) {
	rows, err := s.db.Query(`
		SELECT ad.id, ad.decision_date, COALESCE(ad.market_context, ''),
			COALESCE(ad.quant_signals, ''), COALESCE(ad.llm_analysis, ''),
			COALESCE(ad.llm_decision, ''), COALESCE(ad.confidence, 0),
			COALESCE(ad.model_used, ''), COALESCE(ad.tokens_used, 0)
		FROM agent_decisions ad
		WHERE ad.decision_date <= ?
			AND ad.id NOT IN (
				SELECT COALESCE(decision_id, 0) FROM reflections WHERE period = ?
			)
		ORDER BY ad.decision_date ASC
	`, cutoffDate, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentDecision
	for rows.Next() {
		var d AgentDecision
		if err := rows.Scan(&d.ID, &d.DecisionDate, &d.MarketContext, &d.QuantSignals,
			&d.LLMAnalysis, &d.LLMDecision, &d.Confidence, &d.ModelUsed, &d.TokensUsed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecentDecisions returns the newest limit decisions.
func (s *Store) RecentDecisions(limit int) ([]AgentDecision, error) {
	rows, err := s.db.Query(`
		SELECT id, decision_date, COALESCE(market_context, ''), COALESCE(quant_signals, ''),
			COALESCE(llm_analysis, ''), COALESCE(llm_decision, ''), COALESCE(confidence, 0),
			COALESCE(reasoning, ''), COALESCE(model_used, ''), COALESCE(tokens_used, 0),
			COALESCE(created_at, '')
		FROM agent_decisions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentDecision
	for rows.Next() {
		var d AgentDecision
		if err := rows.Scan(&d.ID, &d.DecisionDate, &d.MarketContext, &d.QuantSignals,
			&d.LLMAnalysis, &d.LLMDecision, &d.Confidence, &d.Reasoning,
			&d.ModelUsed, &d.TokensUsed, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Reflection is one persisted reflection row.
type Reflection struct {
	ID              int64
	ReflectionDate  string
	DecisionID      int64
	Period          string // "7d" | "30d"
	OriginalSignal  string
	ActualOutcome   string
	WasCorrect      bool
	ReflectionText  string
	LessonsJSON     string
	CognitiveUpdate string
}

// SaveReflection persists one reflection and returns its row id.
func (s *Store) SaveReflection(r Reflection) (int64, error) {
	correct := 0
	if r.WasCorrect {
		correct = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO reflections
			(reflection_date, decision_id, period, original_signal, actual_outcome,
			 was_correct, reflection_text, lessons_learned, cognitive_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ReflectionDate, nullableID(r.DecisionID), r.Period, r.OriginalSignal,
		r.ActualOutcome, correct, r.ReflectionText, r.LessonsJSON, r.CognitiveUpdate)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentReflections returns the newest limit reflections.
func (s *Store) RecentReflections(limit int) ([]Reflection, error) {
	rows, err := s.db.Query(`
		SELECT id, reflection_date, COALESCE(decision_id, 0), period,
			COALESCE(original_signal, ''), COALESCE(actual_outcome, ''),
			COALESCE(was_correct, 0), COALESCE(reflection_text, ''),
			COALESCE(lessons_learned, ''), COALESCE(cognitive_update, '')
		FROM reflections ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reflection
	for rows.Next() {
		var r Reflection
		var correct int
		if err := rows.Scan(&r.ID, &r.ReflectionDate, &r.DecisionID, &r.Period,
			&r.OriginalSignal, &r.ActualOutcome, &correct, &r.ReflectionText,
			&r.LessonsJSON, &r.CognitiveUpdate); err != nil {
			return nil, err
		}
		r.WasCorrect = correct == 1
		out = append(out, r)
	}
	return out, rows.Err()
}
