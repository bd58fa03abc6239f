package utils

import (
	"math"

	"github.com/Random121/nwhacks-2026/models"
)

// The face-landmark backend reports these six mesh points, in this order:
// nose tip, chin, left eye outer corner, right eye outer corner, left mouth
// corner, right mouth corner (mesh indices 1, 199, 33, 263, 61, 291).
const (
	lmNoseTip = iota
	lmChin
	lmLeftEye
	lmRightEye
	lmMouthLeft
	lmMouthRight
	landmarkCount
)

type vec3 struct{ x, y, z float64 }

func sub(a, b models.FaceLandmark) vec3 {
	return vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func cross(a, b vec3) vec3 {
	return vec3{
		a.y*b.z - a.z*b.y,
		a.z*b.x - a.x*b.z,
		a.x*b.y - a.y*b.x,
	}
}

func norm(v vec3) float64 {
	return math.Sqrt(v.x*v.x + v.y*v.y + v.z*v.z)
}

// SolveHeadPose derives head yaw and pitch, in degrees, from the six
// reference landmarks. The solve builds a face frame from the eye line and
// the eye-midpoint-to-chin axis, takes its normal as the gaze direction and
// reads the Euler angles off it. Landmark depth must already be scaled to
// pixel units (the backend multiplies the raw depth by the frame width, a
// focal length of one frame width in the usual pinhole approximation).
//
// Conventions: image x grows right, y grows down, z grows away from the
// camera. Positive yaw means the user is looking to the right, positive
// pitch means looking up.
//
// ok is false when the landmarks are degenerate (coincident points).
func SolveHeadPose(landmarks []models.FaceLandmark) (yaw, pitch float64, ok bool) {
	if len(landmarks) < landmarkCount {
		return 0, 0, false
	}

	eyeAxis := sub(landmarks[lmRightEye], landmarks[lmLeftEye])
	midEye := models.FaceLandmark{
		X: (landmarks[lmLeftEye].X + landmarks[lmRightEye].X) / 2,
		Y: (landmarks[lmLeftEye].Y + landmarks[lmRightEye].Y) / 2,
		Z: (landmarks[lmLeftEye].Z + landmarks[lmRightEye].Z) / 2,
	}
	downAxis := sub(landmarks[lmChin], midEye)

	normal := cross(eyeAxis, downAxis)
	if norm(normal) < 1e-9 {
		return 0, 0, false
	}

	// For a frontal face the normal points straight along +z; tilting the
	// head swings it in x (yaw) and y (pitch).
	yaw = math.Atan2(normal.x, normal.z) * 180 / math.Pi
	pitch = -math.Atan2(normal.y, normal.z) * 180 / math.Pi
	return yaw, pitch, true
}

// ClassifyPose turns a pose sample into a distraction verdict. Checks run in
// priority order: face presence, then yaw, then pitch. Every sample is judged
// independently; flapping between verdicts is absorbed by the alert
// coordinator's cooldown, not here.
func ClassifyPose(sample models.PoseSample, yawLimit, pitchDownLimit, pitchUpLimit float64) models.Verdict {
	if !sample.FacePresent {
		return models.Distracted(models.SourceEyes, "Away from desk")
	}
	if sample.Yaw < -yawLimit {
		return models.Distracted(models.SourceEyes, "looking left")
	}
	if sample.Yaw > yawLimit {
		return models.Distracted(models.SourceEyes, "looking right")
	}
	if sample.Pitch < -pitchDownLimit {
		return models.Distracted(models.SourceEyes, "looking down")
	}
	if sample.Pitch > pitchUpLimit {
		return models.Distracted(models.SourceEyes, "looking up")
	}
	return models.OnTrack()
}
