// Package sla computes ticket resolution deadlines from category budgets.
package sla

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickar/cal/v2"

	"github.com/spec-kit/incident-router/internal/config"
	"github.com/spec-kit/incident-router/internal/domain"
)

// ErrInvalidHours is returned for a category whose SLA budget is not a positive number of hours.
var ErrInvalidHours = errors.New("sla hours must be a positive integer")

// Calculator turns a category's SLA hours into an absolute deadline. The zero
// configuration counts wall-clock hours; a business calendar counts only work hours.
type Calculator struct {
	calendar *cal.BusinessCalendar
	loc      *time.Location
}

// NewCalculator returns a wall-clock calculator: deadline = created + sla_hours.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// NewBusinessCalculator counts SLA hours only inside [startHour, endHour) on weekdays.
func NewBusinessCalculator(startHour, endHour int, loc *time.Location) *Calculator {
	c := cal.NewBusinessCalendar()
	c.SetWorkHours(time.Duration(startHour)*time.Hour, time.Duration(endHour)*time.Hour)
	c.SetWorkday(time.Saturday, false)
	c.SetWorkday(time.Sunday, false)
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{calendar: c, loc: loc}
}

// NewFromConfig picks the calculator mode from configuration.
func NewFromConfig(cfg config.SLAConfig) *Calculator {
	if !cfg.BusinessHours {
		return NewCalculator()
	}
	return NewBusinessCalculator(cfg.WorkdayStart, cfg.WorkdayEnd, cfg.Location())
}

// Deadline computes the absolute deadline for a ticket of category created at created.
func (c *Calculator) Deadline(created time.Time, category *domain.Category) (time.Time, error) {
	if category == nil {
		return time.Time{}, ErrInvalidHours
	}
	if category.SLAHours <= 0 {
		return time.Time{}, fmt.Errorf("category %q: %w", category.Name, ErrInvalidHours)
	}
	budget := time.Duration(category.SLAHours) * time.Hour
	if c == nil || c.calendar == nil {
		return created.Add(budget), nil
	}
	return c.calendar.AddWorkHours(created.In(c.loc), budget), nil
}
