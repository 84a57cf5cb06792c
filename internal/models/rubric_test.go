package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inform-api/internal/models"
)

func validRubric() models.RubricVersion {
	return models.RubricVersion{
		ScaleMin:  1,
		ScaleMax:  5,
		ScaleStep: 1,
		Questions: []models.RubricQuestion{
			{ID: "q1", Label: "Clarity", Weight: 0.4, Required: true},
			{ID: "q2", Label: "Impact", Weight: 0.6},
		},
	}
}

func TestRubricValidate(t *testing.T) {
	cases := map[string]func(r *models.RubricVersion){
		"zero step":        func(r *models.RubricVersion) { r.ScaleStep = 0 },
		"inverted bounds":  func(r *models.RubricVersion) { r.ScaleMin, r.ScaleMax = 5, 1 },
		"no questions":     func(r *models.RubricVersion) { r.Questions = nil },
		"duplicate ids":    func(r *models.RubricVersion) { r.Questions[1].ID = "q1" },
		"blank id":         func(r *models.RubricVersion) { r.Questions[0].ID = " " },
		"weight above one": func(r *models.RubricVersion) { r.Questions[0].Weight = 1.5 },
		"negative weight":  func(r *models.RubricVersion) { r.Questions[0].Weight = -0.1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rubric := validRubric()
			mutate(&rubric)
			err := rubric.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, models.ErrInvalidRubric))
		})
	}

	require.NoError(t, validRubric().Validate())

	unbalanced := validRubric()
	unbalanced.Questions[1].Weight = 0.1
	require.NoError(t, unbalanced.Validate(), "weights need not sum to one")
}

func TestRubricScaleChecks(t *testing.T) {
	rubric := models.RubricVersion{ScaleMin: 0, ScaleMax: 10, ScaleStep: 2}

	require.True(t, rubric.InScale(0))
	require.True(t, rubric.InScale(10))
	require.False(t, rubric.InScale(11))
	require.False(t, rubric.InScale(-1))

	require.True(t, rubric.OnStep(4))
	require.False(t, rubric.OnStep(5))

	question, ok := validRubric().Question("q2")
	require.True(t, ok)
	require.Equal(t, "Impact", question.Label)
	_, ok = validRubric().Question("missing")
	require.False(t, ok)
}
