/*
The sync package implements dirsync's copy algorithm. A sync replaces a
destination directory with the contents of a source directory, where at most
one of the two lives on an SSH host.

A sync happens in three stages:
1) Archive -- The source directory is packaged into a tar archive in the
   source machine's staging directory.
2) Transfer -- The archive is copied with scp into the destination machine's
   staging directory. When both directories are local, they share a staging
   directory and this stage is skipped.
3) Unarchive -- The destination directory is deleted and recreated, and the
   archive is extracted into it. Files that only existed at the destination
   are lost.

Every command is planned before anything runs, so that the user can review the
full list and decline it. The commands run in a fixed order, and the first
failure stops the sync. Nothing is rolled back.
*/
package sync
