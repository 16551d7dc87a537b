package media

import "videostove/internal/model"

// Classify applies the mode rules to a scanned project. It is pure:
// the same scan and mode always produce the same result.
//
// Scan failures and projects with no media at all short-circuit to an
// error before any mode rule runs.
func Classify(scan model.ScannedProject, mode model.RenderMode) model.Eligibility {
	if scan.ScanErr != "" {
		return model.Eligibility{State: model.EligibilityError, Reason: model.ReasonScanFailed}
	}
	if scan.ImageCount == 0 && scan.VideoCount == 0 && scan.AudioCount == 0 {
		return model.Eligibility{State: model.EligibilityError, Reason: model.ReasonScanFailed}
	}

	switch mode {
	case model.ModeSlideshow:
		if scan.VideoCount > 0 {
			return model.Eligibility{State: model.Ineligible, Reason: model.ReasonImagesDisallowed}
		}
		if scan.ImageCount == 0 {
			return model.Eligibility{State: model.Ineligible, Reason: model.ReasonNoImages}
		}
		return model.Eligibility{State: model.Eligible}
	case model.ModeMontage, model.ModeVideosOnly:
		if scan.VideoCount == 0 {
			return model.Eligibility{State: model.Ineligible, Reason: model.ReasonNoVideos}
		}
		return model.Eligibility{State: model.Eligible}
	default:
		return model.Eligibility{State: model.EligibilityError, Reason: model.ReasonScanFailed}
	}
}

// InferMode guesses the natural mode for a scan: anything with video
// is a montage candidate, otherwise a slideshow.
func InferMode(scan model.ScannedProject) model.RenderMode {
	if scan.VideoCount > 0 {
		return model.ModeMontage
	}
	return model.ModeSlideshow
}
