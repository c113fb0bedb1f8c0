package examgen

// Transition is the regeneration controller's decision after a validation
// pass.
type Transition string

const (
	// TransitionRegenerate re-enters generation with the same retrieved
	// context.
	TransitionRegenerate Transition = "regenerate"
	// TransitionContinue accepts the draft and proceeds to finalization.
	TransitionContinue Transition = "continue"
	// TransitionFail terminates the instance; no question is stored.
	TransitionFail Transition = "fail"
)

// Decide is the controller's pure decision function, evaluated after every
// validation pass. The rules apply in order:
//
//  1. No validation result at all fails the instance.
//  2. At the attempt cap, an already-valid draft is salvaged (continue) but
//     an invalid one is not (fail).
//  3. A medical-accuracy failure regenerates regardless of confidence.
//  4. An invalid verdict or a confidence below the threshold regenerates.
//  5. Otherwise the draft is accepted.
func Decide(result *ValidationResult, attemptCount int, gen GenerationConfig) Transition {
	if result == nil {
		return TransitionFail
	}
	if attemptCount >= gen.MaxRegenerationAttempts {
		if result.IsValid {
			return TransitionContinue
		}
		return TransitionFail
	}
	if !result.MedicalAccuracy {
		return TransitionRegenerate
	}
	if !result.IsValid || result.ConfidenceScore < gen.ValidationConfidenceThreshold {
		return TransitionRegenerate
	}
	return TransitionContinue
}
