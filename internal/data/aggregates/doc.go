// Package aggregates implements the progression core: enrollment, trainee-driven task and
// subject completion with its upward cascade, and explicit course/subject lifecycle transitions.
//
// Every write runs inside one transaction that first locks the owning course row. Parent
// transitions are single conditional UPDATEs, so a subject or course closes exactly once no
// matter how many trainees finish concurrently.
package aggregates
